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

var toxicityCategories = []string{"insult", "threat", "obscene", "identity_attack"}

var toxicityKeywords = map[string][]string{
	"threat":          {"i will hurt you", "i will kill you"},
	"insult":          {"you are an idiot", "you are stupid"},
	"obscene":         {},
	"identity_attack": {},
}

func toxicityHeuristic(text string) heuristicOutcome {
	lower := strings.ToLower(text)

	if strings.TrimSpace(lower) == "" {
		return heuristicOutcome{verdict: verdictSafeShortCircuit}
	}

	for category, phrases := range toxicityKeywords {
		for _, phrase := range phrases {
			if idx := strings.Index(lower, phrase); idx != -1 {
				return heuristicOutcome{
					verdict:   verdictUnsafeShortCircuit,
					riskScore: 0.9,
					findings: []scanner.Finding{
						scanner.NewFinding(category, scanner.Critical,
							"input contains a known "+category+" phrase", idx, idx+len(phrase)),
					},
				}
			}
		}
	}

	return heuristicOutcome{verdict: verdictAmbiguous, riskScore: 0.1}
}

// NewToxicityScanner builds the hybrid multi-label toxicity scanner. Unlike
// prompt injection/sentiment, is_valid requires every category's score stay
// under its own threshold (spec.md §4.7 last paragraph).
func NewToxicityScanner(cfg gwconfig.ScannerConfig, thresholds map[string]float32, cache *resultcache.Cache, ld *loader.Loader, tok *tokenizer.Tokenizer, tel *telemetry.Registry) scanner.Scanner {
	return &hybridScanner{
		name:         "toxicity",
		cfg:          cfg,
		cache:        cache,
		loader:       ld,
		modelKey:     modelKeyFor(cfg, modelregistry.TaskToxicity),
		tok:          tok,
		labels:       toxicityCategories,
		unsafeLabels: toxicityCategories,
		thresholds:   thresholds,
		post:         inference.PostSigmoid,
		heuristic:    toxicityHeuristic,
		tel:          tel,
	}
}
