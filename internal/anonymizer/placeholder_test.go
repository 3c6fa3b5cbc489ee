package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmshield/gateway/internal/entity"
)

func TestPlaceholderGeneratorIncrementsPerType(t *testing.T) {
	g := NewPlaceholderGenerator()
	require.Equal(t, "[EMAIL_1]", g.Generate(entity.TypeEmail))
	require.Equal(t, "[EMAIL_2]", g.Generate(entity.TypeEmail))
	require.Equal(t, "[PERSON_1]", g.Generate(entity.TypePerson))
}

func TestPlaceholderGeneratorIsIndependentPerInstance(t *testing.T) {
	g1 := NewPlaceholderGenerator()
	g2 := NewPlaceholderGenerator()
	require.Equal(t, "[EMAIL_1]", g1.Generate(entity.TypeEmail))
	require.Equal(t, "[EMAIL_1]", g2.Generate(entity.TypeEmail))
}
