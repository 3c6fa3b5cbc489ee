package inference

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/llmshield/gateway/internal/gwconfig"
)

func writeModelFile(t *testing.T, labels []string, tokenWeights map[string][]float32) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.json")
	data := modelFile{
		Labels:       labels,
		Bias:         make([]float32, len(labels)),
		TokenWeights: tokenWeights,
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0600))
	return path
}

func TestClassifyPrefersHigherWeightedLabel(t *testing.T) {
	path := writeModelFile(t, []string{"safe", "injection"}, map[string]float32vecAlias{
		"101": {0.1, 5.0},
		"102": {0.2, 0.1},
	})
	sess, err := New(context.Background(), path, gwconfig.DefaultLoaderConfig())
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Classify(context.Background(), []int32{101, 102}, []int32{1, 1}, []string{"safe", "injection"}, PostSoftmax)
	require.NoError(t, err)
	require.Equal(t, "injection", res.TopLabel)
	var sum float32
	for _, s := range res.Scores {
		sum += s
	}
	require.InDelta(t, 1.0, sum, 1e-5)
}

func TestClassifyMasksPaddingTokens(t *testing.T) {
	path := writeModelFile(t, []string{"safe", "toxic"}, map[string]float32vecAlias{
		"5": {0, 9.0},
	})
	sess, err := New(context.Background(), path, gwconfig.DefaultLoaderConfig())
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Classify(context.Background(), []int32{5, 5}, []int32{1, 0}, []string{"safe", "toxic"}, PostSigmoid)
	require.NoError(t, err)
	require.InDelta(t, sigmoidRef(9.0), res.Scores[1], 1e-4)
}

func TestClassifyTokensProducesOnePredictionPerToken(t *testing.T) {
	path := writeModelFile(t, []string{"O", "B-PER"}, map[string]float32vecAlias{
		"7": {0, 4.0},
	})
	sess, err := New(context.Background(), path, gwconfig.DefaultLoaderConfig())
	require.NoError(t, err)
	defer sess.Close()

	preds, err := sess.ClassifyTokens(context.Background(), []int32{7, 1}, []int32{1, 1}, []string{"O", "B-PER"})
	require.NoError(t, err)
	require.Len(t, preds, 2)
	require.Equal(t, "B-PER", preds[0].Label)
}

func TestPoolRunRespectsContextTimeout(t *testing.T) {
	pool := NewPool(1)
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := pool.Run(ctx, func() {
		time.Sleep(50 * time.Millisecond)
	})
	require.Error(t, err)
}

func sigmoidRef(x float64) float32 {
	return sigmoid(float32(x))
}

// float32vecAlias exists only so the test's map literal type-checks without
// importing a generic helper for a JSON field that is []float32 in practice.
type float32vecAlias = []float32
