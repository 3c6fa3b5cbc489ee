package inference

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftmaxSumsToOne(t *testing.T) {
	out := softmax([]float32{2.0, 1.0, 0.1})
	var sum float32
	for _, v := range out {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
		sum += v
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}

func TestSoftmaxUniformOnEqualLogits(t *testing.T) {
	out := softmax([]float32{5, 5, 5, 5})
	for _, v := range out {
		require.InDelta(t, 0.25, v, 1e-6)
	}
}

func TestSoftmaxEmpty(t *testing.T) {
	require.Empty(t, softmax(nil))
}

func TestSigmoidBounds(t *testing.T) {
	require.InDelta(t, 0.5, sigmoid(0), 1e-6)
	require.Greater(t, sigmoid(100), float32(0.99))
	require.Less(t, sigmoid(-100), float32(0.01))
	require.False(t, math.IsNaN(float64(sigmoid(1e10))))
}

func TestArgmax(t *testing.T) {
	require.Equal(t, 2, argmax([]float32{0.1, 0.2, 0.9, 0.05}))
	require.Equal(t, 0, argmax(nil))
}
