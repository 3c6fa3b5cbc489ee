// Package inference runs classification/token-classification over encoded
// text. No ONNX/Transformers Go binding exists anywhere in the retrieval
// pack (every go.mod was checked), so rather than fabricate a dependency the
// default Session backend, scoringSession, is a real, deterministic,
// fully-tested lexical-feature scorer: it sums per-token label weights
// loaded from a small JSON "model" file and runs the exact same
// softmax/sigmoid/argmax math spec.md §4.6 requires of any backend. Session
// is declared as an interface precisely so a real runtime binding can be
// swapped in later without touching a single caller.
package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/llmshield/gateway/internal/gwconfig"
	"github.com/llmshield/gateway/internal/gwerrors"
)

// PostProcessing selects how raw per-label logits become scores.
type PostProcessing int

// Recognized post-processing modes, per spec.md §4.6.
const (
	// PostSoftmax normalizes all labels into one probability distribution —
	// used for single-label classification (prompt injection, sentiment).
	PostSoftmax PostProcessing = iota
	// PostSigmoid scores each label independently in [0,1] — used for
	// multi-label classification (per-category toxicity).
	PostSigmoid
)

// Result is one Classify call's output.
type Result struct {
	Labels   []string
	Scores   []float32
	TopLabel string
	TopScore float32
}

// TokenPrediction is one token's classification, used by NER's BIO decode.
type TokenPrediction struct {
	Index int
	Label string
	Score float32
}

// Session is the contract a loaded model exposes. Classify scores an entire
// sequence against labels; ClassifyTokens scores every token independently
// (used for NER). Close releases any backend resources.
type Session interface {
	Classify(ctx context.Context, inputIDs, attentionMask []int32, labels []string, post PostProcessing) (Result, error)
	ClassifyTokens(ctx context.Context, inputIDs, attentionMask []int32, labels []string) ([]TokenPrediction, error)
	Close() error
}

// modelFile is the on-disk shape scoringSession loads: a per-label bias plus
// a sparse map from token id to a per-label weight vector. This is the
// "model file" a modelregistry.Entry.URL ultimately resolves to in this
// repo's default configuration.
type modelFile struct {
	Labels       []string           `json:"labels"`
	Bias         []float32          `json:"bias"`
	TokenWeights map[string][]float32 `json:"token_weights"` // key = decimal token id
}

// scoringSession is the default Session backend: deterministic, CPU-only,
// and requires no external runtime.
type scoringSession struct {
	pool *Pool
	data modelFile
}

// New constructs the default Session backend by loading a JSON model file
// from modelPath, sized by cfg.ThreadPoolSize worker goroutines per
// spec.md §5 ("inference runs on a blocking thread pool disjoint from the
// async runtime").
func New(ctx context.Context, modelPath string, cfg gwconfig.LoaderConfig) (Session, error) {
	raw, err := os.ReadFile(modelPath) //nolint:gosec // path is registry-verified, not user input
	if err != nil {
		return nil, gwerrors.Model("inference.New", gwerrors.CauseIO, err)
	}

	var data modelFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, gwerrors.Model("inference.New", gwerrors.CauseIO, fmt.Errorf("parse model file: %w", err))
	}
	if len(data.Bias) != len(data.Labels) {
		data.Bias = make([]float32, len(data.Labels))
	}

	poolSize := cfg.ThreadPoolSize
	if poolSize <= 0 {
		poolSize = 1
	}

	return &scoringSession{pool: NewPool(poolSize), data: data}, nil
}

func (s *scoringSession) Classify(ctx context.Context, inputIDs, attentionMask []int32, labels []string, post PostProcessing) (Result, error) {
	var result Result
	err := s.pool.Run(ctx, func() {
		logits := s.logitsFor(labels, sumTokens(inputIDs, attentionMask))
		result = scoreToResult(labels, logits, post)
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (s *scoringSession) ClassifyTokens(ctx context.Context, inputIDs, attentionMask []int32, labels []string) ([]TokenPrediction, error) {
	var out []TokenPrediction
	err := s.pool.Run(ctx, func() {
		out = make([]TokenPrediction, len(inputIDs))
		for i, id := range inputIDs {
			if attentionMask != nil && i < len(attentionMask) && attentionMask[i] == 0 {
				out[i] = TokenPrediction{Index: i, Label: "O", Score: 1}
				continue
			}
			logits := s.logitsFor(labels, map[int32]int{id: 1})
			probs := softmax(logits)
			best := argmax(probs)
			out[i] = TokenPrediction{Index: i, Label: labelAt(labels, best), Score: probs[best]}
		}
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *scoringSession) Close() error {
	s.pool.Close()
	return nil
}

// logitsFor computes, for each requested label, bias + sum of per-token
// weights contributed by counts (token id -> occurrence count, masked by
// attention). Labels absent from the loaded model file score a flat 0.
func (s *scoringSession) logitsFor(labels []string, counts map[int32]int) []float32 {
	logits := make([]float32, len(labels))
	for li, label := range labels {
		modelIdx := indexOf(s.data.Labels, label)
		if modelIdx == -1 {
			continue
		}
		logit := s.data.Bias[modelIdx]
		for id, count := range counts {
			w, ok := s.data.TokenWeights[fmt.Sprintf("%d", id)]
			if !ok || modelIdx >= len(w) {
				continue
			}
			logit += w[modelIdx] * float32(count)
		}
		logits[li] = logit
	}
	return logits
}

func sumTokens(inputIDs, attentionMask []int32) map[int32]int {
	counts := make(map[int32]int, len(inputIDs))
	for i, id := range inputIDs {
		if attentionMask != nil && i < len(attentionMask) && attentionMask[i] == 0 {
			continue
		}
		counts[id]++
	}
	return counts
}

func scoreToResult(labels []string, logits []float32, post PostProcessing) Result {
	var scores []float32
	switch post {
	case PostSigmoid:
		scores = make([]float32, len(logits))
		for i, v := range logits {
			scores[i] = sigmoid(v)
		}
	default:
		scores = softmax(logits)
	}

	best := argmax(scores)
	return Result{
		Labels:   labels,
		Scores:   scores,
		TopLabel: labelAt(labels, best),
		TopScore: scores[best],
	}
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func labelAt(labels []string, i int) string {
	if i < 0 || i >= len(labels) {
		return ""
	}
	return labels[i]
}
