package entity

import (
	"context"
	"strings"

	"github.com/llmshield/gateway/internal/inference"
	"github.com/llmshield/gateway/internal/tokenizer"
)

// NERDetector tokenizes text, classifies each token, and reconstructs entity
// spans by BIO decoding per spec.md §4.8.
type NERDetector struct {
	session             inference.Session
	tok                 *tokenizer.Tokenizer
	labels              []string // e.g. "O", "B-PER", "I-PER", ...
	confidenceThreshold float32
}

// NewNERDetector builds a NERDetector over session using tok to encode
// input text. labels is the model's full BIO label set.
func NewNERDetector(session inference.Session, tok *tokenizer.Tokenizer, labels []string, confidenceThreshold float32) *NERDetector {
	return &NERDetector{session: session, tok: tok, labels: labels, confidenceThreshold: confidenceThreshold}
}

func (d *NERDetector) Detect(ctx context.Context, text string) ([]Match, error) {
	enc, err := d.tok.Encode(text)
	if err != nil {
		return nil, err
	}

	preds, err := d.session.ClassifyTokens(ctx, enc.InputIDs, enc.AttentionMask, d.labels)
	if err != nil {
		return nil, err
	}

	return decodeBIO(text, enc.Offsets, preds, d.confidenceThreshold), nil
}

type openSpan struct {
	entityType  string
	start, end  int
	confidences []float32
}

// decodeBIO reconstructs entity spans from per-token BIO predictions,
// transcribed verbatim from spec.md §4.8: tokens with offset (0,0) (special
// tokens / padding) are skipped; a stray "I-T" with no compatible open span
// is tolerated and treated as a "B-T".
func decodeBIO(text string, offsets [][2]int, preds []inference.TokenPrediction, confidenceThreshold float32) []Match {
	var matches []Match
	var current *openSpan

	finalize := func() {
		if current == nil {
			return
		}
		var sum float32
		for _, c := range current.confidences {
			sum += c
		}
		mean := sum / float32(len(current.confidences))
		if mean >= confidenceThreshold {
			matches = append(matches, Match{
				Type:       Type(current.entityType),
				Value:      text[current.start:current.end],
				Start:      current.start,
				End:        current.end,
				Confidence: mean,
			})
		}
		current = nil
	}

	for i, pred := range preds {
		if i >= len(offsets) {
			break
		}
		off := offsets[i]
		if off[0] == 0 && off[1] == 0 {
			continue
		}

		switch {
		case strings.HasPrefix(pred.Label, "B-"):
			finalize()
			current = &openSpan{entityType: pred.Label[2:], start: off[0], end: off[1], confidences: []float32{pred.Score}}
		case strings.HasPrefix(pred.Label, "I-"):
			t := pred.Label[2:]
			if current != nil && current.entityType == t {
				current.end = off[1]
				current.confidences = append(current.confidences, pred.Score)
			} else {
				finalize()
				current = &openSpan{entityType: t, start: off[0], end: off[1], confidences: []float32{pred.Score}}
			}
		default: // "O" or anything else
			finalize()
		}
	}
	finalize()

	return matches
}
