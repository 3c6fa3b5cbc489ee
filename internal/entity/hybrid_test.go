package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubDetector struct {
	matches []Match
}

func (s *stubDetector) Detect(context.Context, string) ([]Match, error) {
	return s.matches, nil
}

func TestHybridDetectorDropsOverlappingNERMatch(t *testing.T) {
	regex := &stubDetector{matches: []Match{{Type: TypeEmail, Start: 10, End: 28, Confidence: 0.95}}}
	ner := &stubDetector{matches: []Match{
		{Type: TypePerson, Start: 15, End: 20, Confidence: 0.7}, // overlaps the regex email match
		{Type: TypeLocation, Start: 40, End: 45, Confidence: 0.7},
	}}

	d := NewHybridDetector(regex, ner)
	matches, err := d.Detect(context.Background(), "irrelevant text body")
	require.NoError(t, err)

	require.Len(t, matches, 2)
	require.Equal(t, TypeEmail, matches[0].Type)
	require.Equal(t, TypeLocation, matches[1].Type)
}

func TestHybridDetectorSortsBySourceOrder(t *testing.T) {
	regex := &stubDetector{matches: []Match{{Type: TypeEmail, Start: 30, End: 40}}}
	ner := &stubDetector{matches: []Match{{Type: TypePerson, Start: 0, End: 4}}}

	d := NewHybridDetector(regex, ner)
	matches, err := d.Detect(context.Background(), "text")
	require.NoError(t, err)

	require.Len(t, matches, 2)
	require.Equal(t, TypePerson, matches[0].Type)
	require.Equal(t, TypeEmail, matches[1].Type)
}
