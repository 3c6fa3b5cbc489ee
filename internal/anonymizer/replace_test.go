package anonymizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmshield/gateway/internal/entity"
)

func TestReplaceSplicesNonOverlappingSpans(t *testing.T) {
	text := "call jane@example.com or 555-1234"
	matches := []entity.Match{
		{Type: entity.TypeEmail, Start: 5, End: 21},
		{Type: entity.TypePhone, Start: 25, End: 33},
	}
	out, err := Replace(text, matches, []string{"[EMAIL_1]", "[PHONE_1]"})
	require.NoError(t, err)
	require.Equal(t, "call [EMAIL_1] or [PHONE_1]", out)
}

func TestReplaceIsOrderIndependentInInput(t *testing.T) {
	text := "AB"
	matches := []entity.Match{
		{Start: 1, End: 2}, // "B"
		{Start: 0, End: 1}, // "A"
	}
	out, err := Replace(text, matches, []string{"[SECOND]", "[FIRST]"})
	require.NoError(t, err)
	require.Equal(t, "[FIRST][SECOND]", out)
}

func TestReplaceRejectsMismatchedLengths(t *testing.T) {
	_, err := Replace("x", []entity.Match{{Start: 0, End: 1}}, nil)
	require.Error(t, err)
}

func TestReplaceRejectsOutOfRangeSpan(t *testing.T) {
	_, err := Replace("short", []entity.Match{{Start: 0, End: 99}}, []string{"[X_1]"})
	require.Error(t, err)
}

func TestReplaceRejectsOverlappingSpans(t *testing.T) {
	_, err := Replace("abcdefghij", []entity.Match{
		{Start: 5, End: 10},
		{Start: 3, End: 7}, // overlaps the first span
	}, []string{"[A_1]", "[B_1]"})
	require.Error(t, err)
}

func TestReplaceHandlesEmptyMatchList(t *testing.T) {
	out, err := Replace("unchanged", nil, nil)
	require.NoError(t, err)
	require.Equal(t, "unchanged", out)
}
