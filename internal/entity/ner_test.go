package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmshield/gateway/internal/inference"
	"github.com/llmshield/gateway/internal/tokenizer"
)

func tokenizerForTest(t *testing.T) (*tokenizer.Tokenizer, error) {
	t.Helper()
	return tokenizer.NewFromVocab([]string{"Sam"}, tokenizer.Config{MaxLength: 16})
}

// fakeSession is a minimal inference.Session stub so BIO-decode logic can be
// tested without a real model file.
type fakeSession struct {
	tokenPreds []inference.TokenPrediction
}

func (f *fakeSession) Classify(context.Context, []int32, []int32, []string, inference.PostProcessing) (inference.Result, error) {
	return inference.Result{}, nil
}

func (f *fakeSession) ClassifyTokens(context.Context, []int32, []int32, []string) ([]inference.TokenPrediction, error) {
	return f.tokenPreds, nil
}

func (f *fakeSession) Close() error { return nil }

func TestDecodeBIOReconstructsSpan(t *testing.T) {
	text := "John Smith called"
	offsets := [][2]int{{0, 4}, {5, 10}, {11, 17}}
	preds := []inference.TokenPrediction{
		{Label: "B-PER", Score: 0.9},
		{Label: "I-PER", Score: 0.8},
		{Label: "O", Score: 0.95},
	}

	matches := decodeBIO(text, offsets, preds, 0.5)
	require.Len(t, matches, 1)
	require.Equal(t, Type("PER"), matches[0].Type)
	require.Equal(t, "John Smith", matches[0].Value)
	require.InDelta(t, 0.85, matches[0].Confidence, 1e-6)
}

func TestDecodeBIODiscardsBelowThreshold(t *testing.T) {
	text := "Acme Corp"
	offsets := [][2]int{{0, 4}, {5, 9}}
	preds := []inference.TokenPrediction{
		{Label: "B-ORG", Score: 0.2},
		{Label: "I-ORG", Score: 0.1},
	}

	matches := decodeBIO(text, offsets, preds, 0.5)
	require.Empty(t, matches)
}

func TestDecodeBIOTreatsStrayIAsBegin(t *testing.T) {
	text := "Paris"
	offsets := [][2]int{{0, 5}}
	preds := []inference.TokenPrediction{
		{Label: "I-LOC", Score: 0.9},
	}

	matches := decodeBIO(text, offsets, preds, 0.5)
	require.Len(t, matches, 1)
	require.Equal(t, "Paris", matches[0].Value)
}

func TestDecodeBIOSkipsSpecialTokenOffsets(t *testing.T) {
	text := "Bob"
	offsets := [][2]int{{0, 0}, {0, 3}, {0, 0}}
	preds := []inference.TokenPrediction{
		{Label: "O", Score: 1},
		{Label: "B-PER", Score: 0.9},
		{Label: "O", Score: 1},
	}

	matches := decodeBIO(text, offsets, preds, 0.5)
	require.Len(t, matches, 1)
	require.Equal(t, "Bob", matches[0].Value)
}

func TestNERDetectorEndToEndWithFakeSession(t *testing.T) {
	sess := &fakeSession{tokenPreds: []inference.TokenPrediction{
		{Label: "B-PER", Score: 0.9},
	}}
	tok, err := tokenizerForTest(t)
	require.NoError(t, err)

	d := NewNERDetector(sess, tok, []string{"O", "B-PER", "I-PER"}, 0.5)
	matches, err := d.Detect(context.Background(), "Sam")
	require.NoError(t, err)
	require.NotEmpty(t, matches)
}
