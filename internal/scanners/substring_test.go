package scanners

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSubstringScannerFlagsBannedPhrase(t *testing.T) {
	s := NewSubstringScanner("banlist", []string{"forbidden phrase", "secret key"})

	res, err := s.Scan(context.Background(), "here is a forbidden phrase in the text", nil)
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.GreaterOrEqual(t, res.RiskScore, float32(0.5))
	require.Contains(t, res.SanitizedInput, "[REDACTED]")
	require.NotContains(t, res.SanitizedInput, "forbidden phrase")
}

func TestSubstringScannerPassesCleanInput(t *testing.T) {
	s := NewSubstringScanner("banlist", []string{"forbidden phrase"})

	res, err := s.Scan(context.Background(), "nothing to see here", nil)
	require.NoError(t, err)
	require.True(t, res.IsValid)
	require.Empty(t, res.Findings)
}

func TestSubstringScannerMultipleOverlappingMatches(t *testing.T) {
	s := NewSubstringScanner("banlist", []string{"aa", "aaa"})

	res, err := s.Scan(context.Background(), "xaaay", nil)
	require.NoError(t, err)
	require.False(t, res.IsValid)
	require.GreaterOrEqual(t, len(res.Findings), 1)
}
