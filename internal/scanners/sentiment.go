package scanners

import (
	"strings"

	"github.com/llmshield/gateway/internal/gwconfig"
	"github.com/llmshield/gateway/internal/inference"
	"github.com/llmshield/gateway/internal/loader"
	"github.com/llmshield/gateway/internal/modelregistry"
	"github.com/llmshield/gateway/internal/resultcache"
	"github.com/llmshield/gateway/internal/scanner"
	"github.com/llmshield/gateway/internal/telemetry"
	"github.com/llmshield/gateway/internal/tokenizer"
)

var sentimentPositivePhrases = []string{"thank you so much", "i really appreciate", "great job"}
var sentimentNegativePhrases = []string{"i hate this", "this is terrible", "worst experience"}

func sentimentHeuristic(text string) heuristicOutcome {
	lower := strings.ToLower(text)

	if strings.TrimSpace(lower) == "" {
		return heuristicOutcome{verdict: verdictSafeShortCircuit}
	}
	for _, phrase := range sentimentNegativePhrases {
		if idx := strings.Index(lower, phrase); idx != -1 {
			return heuristicOutcome{
				verdict:   verdictUnsafeShortCircuit,
				riskScore: 0.8,
				findings: []scanner.Finding{
					scanner.NewFinding("negative", scanner.Medium,
						"input expresses strong negative sentiment", idx, idx+len(phrase)),
				},
			}
		}
	}
	for _, phrase := range sentimentPositivePhrases {
		if strings.Contains(lower, phrase) {
			return heuristicOutcome{verdict: verdictSafeShortCircuit}
		}
	}

	return heuristicOutcome{verdict: verdictAmbiguous, riskScore: 0.15}
}

// NewSentimentScanner builds the hybrid single-label sentiment scanner:
// is_valid = score["negative"] < threshold (spec.md §4.7).
func NewSentimentScanner(cfg gwconfig.ScannerConfig, cache *resultcache.Cache, ld *loader.Loader, tok *tokenizer.Tokenizer, tel *telemetry.Registry) scanner.Scanner {
	return &hybridScanner{
		name:         "sentiment",
		cfg:          cfg,
		cache:        cache,
		loader:       ld,
		modelKey:     modelKeyFor(cfg, modelregistry.TaskSentiment),
		tok:          tok,
		labels:       []string{"positive", "neutral", "negative"},
		unsafeLabels: []string{"negative"},
		post:         inference.PostSoftmax,
		heuristic:    sentimentHeuristic,
		tel:          tel,
	}
}
