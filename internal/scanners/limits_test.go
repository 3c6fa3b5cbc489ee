package scanners

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmshield/gateway/internal/gwerrors"
)

func TestLimitsScannerRejectsOversizedInput(t *testing.T) {
	s := NewLimitsScanner("limits", 10, 0)

	_, err := s.Scan(context.Background(), strings.Repeat("a", 20), nil)
	require.Error(t, err)
	kind, ok := gwerrors.KindOf(err)
	require.True(t, ok)
	require.Equal(t, gwerrors.InvalidInput, kind)
}

func TestLimitsScannerRejectsTooManyLines(t *testing.T) {
	s := NewLimitsScanner("limits", 0, 2)

	_, err := s.Scan(context.Background(), "a\nb\nc\n", nil)
	require.Error(t, err)
}

func TestLimitsScannerPassesWithinBounds(t *testing.T) {
	s := NewLimitsScanner("limits", 100, 10)

	res, err := s.Scan(context.Background(), "short text", nil)
	require.NoError(t, err)
	require.True(t, res.IsValid)
}
