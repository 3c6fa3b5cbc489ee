package scanners

import (
	"context"

	"github.com/llmshield/gateway/internal/gwconfig"
	"github.com/llmshield/gateway/internal/gwerrors"
	"github.com/llmshield/gateway/internal/inference"
	"github.com/llmshield/gateway/internal/loader"
	"github.com/llmshield/gateway/internal/modelregistry"
	"github.com/llmshield/gateway/internal/resultcache"
	"github.com/llmshield/gateway/internal/scanner"
	"github.com/llmshield/gateway/internal/telemetry"
	"github.com/llmshield/gateway/internal/tokenizer"
)

// heuristicVerdict is the outcome of a hybrid scanner's pre-filter step.
type heuristicVerdict int

const (
	verdictSafeShortCircuit heuristicVerdict = iota
	verdictUnsafeShortCircuit
	verdictAmbiguous
)

// heuristicOutcome is what a scanner-specific heuristic function returns.
type heuristicOutcome struct {
	verdict   heuristicVerdict
	riskScore float32
	findings  []scanner.Finding
}

// heuristicFunc is the scanner-specific pre-filter: deterministic,
// keyword/pattern-based, and cheap relative to ML confirmation.
type heuristicFunc func(text string) heuristicOutcome

// hybridScanner implements the three-state decision procedure of spec.md
// §4.7, parameterized per concrete scanner (prompt injection, toxicity,
// sentiment) by its heuristic, label set, and thresholds.
type hybridScanner struct {
	scanner.BaseScanner
	name         string
	cfg          gwconfig.ScannerConfig
	cache        *resultcache.Cache
	loader       *loader.Loader
	modelKey     modelregistry.Key
	tok          *tokenizer.Tokenizer
	labels       []string
	unsafeLabels []string
	thresholds   map[string]float32
	post         inference.PostProcessing
	heuristic    heuristicFunc
	tel          *telemetry.Registry
}

func (s *hybridScanner) Name() string        { return s.name }
func (s *hybridScanner) RequiresModels() bool { return s.cfg.HybridMode != gwconfig.HeuristicOnly }

func (s *hybridScanner) Scan(ctx context.Context, text string, metadata map[string]string) (scanner.ScanResult, error) {
	if !s.cfg.Enabled {
		return scanner.Pass(s.name, text, scanner.DetectionDisabled), nil
	}

	// Per spec the cache key is hash_key(input) alone — each scanner is
	// constructed with its own *resultcache.Cache, so isolation between
	// scanners comes from owning separate cache instances, not from a name
	// prefix baked into the key.
	key := resultcache.HashKey(text)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.tel.RecordCacheHit(s.name)
			cached.DetectionMethod = scanner.DetectionCached
			return cached, nil
		}
		s.tel.RecordCacheMiss(s.name)
	}

	result, err := s.decide(ctx, text, metadata)
	if err != nil {
		return scanner.ScanResult{}, err
	}

	if s.cache != nil {
		s.cache.Insert(key, result)
	}
	return result, nil
}

func (s *hybridScanner) decide(ctx context.Context, text string, metadata map[string]string) (scanner.ScanResult, error) {
	mode := s.cfg.HybridMode

	var heur heuristicOutcome
	if mode != gwconfig.MLOnly {
		heur = s.heuristic(text)
		// Both always runs ML too, so short-circuiting only applies to
		// HeuristicOnly and Hybrid.
		if mode != gwconfig.Both {
			switch heur.verdict {
			case verdictSafeShortCircuit:
				return scanner.ScanResult{
					ScannerName: s.name, IsValid: true, RiskScore: 0,
					SanitizedInput: text, DetectionMethod: scanner.DetectionHeuristicShortCircuit,
				}, nil
			case verdictUnsafeShortCircuit:
				return scanner.ScanResult{
					ScannerName: s.name, IsValid: false, RiskScore: heur.riskScore,
					SanitizedInput: text, Findings: heur.findings,
					DetectionMethod: scanner.DetectionHeuristicShortCircuit,
				}, nil
			}
		}
	}

	if mode == gwconfig.HeuristicOnly {
		return scanner.ScanResult{
			ScannerName: s.name, IsValid: true, RiskScore: heur.riskScore,
			SanitizedInput: text, Findings: heur.findings,
			DetectionMethod: scanner.DetectionHeuristicShortCircuit,
		}, nil
	}

	mlResult, err := s.runML(ctx, text)
	if err != nil {
		kind, _ := gwerrors.KindOf(err)
		if kind == gwerrors.ModelError && s.cfg.FallbackToHeuristic {
			return scanner.ScanResult{
				ScannerName: s.name, IsValid: heur.verdict != verdictUnsafeShortCircuit,
				RiskScore: heur.riskScore, SanitizedInput: text, Findings: heur.findings,
				DetectionMethod: scanner.DetectionMLFallbackToHeuristic,
			}, nil
		}
		return scanner.ScanResult{}, err
	}

	if mode == gwconfig.Both && mlResult.RiskScore < heur.riskScore {
		mlResult.RiskScore = heur.riskScore
		mlResult.Findings = append(mlResult.Findings, heur.findings...)
		mlResult.DetectionMethod = scanner.DetectionBoth
	}

	return mlResult, nil
}

// runML tokenizes, classifies via the loaded session, and converts the
// result into a ScanResult per spec.md §4.6/§4.7's threshold semantics.
func (s *hybridScanner) runML(ctx context.Context, text string) (scanner.ScanResult, error) {
	s.tel.RecordMLDispatch()

	sess, err := s.loader.Load(ctx, s.modelKey)
	if err != nil {
		s.tel.RecordMLError()
		return scanner.ScanResult{}, err
	}

	enc, err := s.tok.Encode(text)
	if err != nil {
		s.tel.RecordMLError()
		return scanner.ScanResult{}, err
	}

	result, err := sess.Classify(ctx, enc.InputIDs, enc.AttentionMask, s.labels, s.post)
	if err != nil {
		s.tel.RecordMLError()
		return scanner.ScanResult{}, err
	}

	var findings []scanner.Finding
	var riskScore float32
	isValid := true
	for _, label := range s.unsafeLabels {
		idx := indexOfLabel(s.labels, label)
		if idx == -1 {
			continue
		}
		score := result.Scores[idx]
		threshold := s.cfg.Threshold
		if t, ok := s.thresholds[label]; ok {
			threshold = t
		}
		if score > riskScore {
			riskScore = score
		}
		if score >= threshold {
			isValid = false
			findings = append(findings, scanner.NewFinding(label, severityFor(score),
				"ML classifier flagged category "+label, 0, len(text)))
		}
	}

	return scanner.ScanResult{
		ScannerName:     s.name,
		IsValid:         isValid,
		RiskScore:       scanner.ClampRiskScore(riskScore),
		SanitizedInput:  text,
		Findings:        findings,
		DetectionMethod: scanner.DetectionML,
	}, nil
}

func indexOfLabel(labels []string, target string) int {
	for i, l := range labels {
		if l == target {
			return i
		}
	}
	return -1
}

// modelKeyFor derives a modelregistry.Key from cfg, defaulting the variant
// to fp32 when unset so every bundled scanner works against a minimally
// configured ScannerConfig.
func modelKeyFor(cfg gwconfig.ScannerConfig, defaultTask modelregistry.Task) modelregistry.Key {
	task := defaultTask
	if cfg.ModelTask != "" {
		task = modelregistry.Task(cfg.ModelTask)
	}
	variant := modelregistry.VariantFP32
	if cfg.ModelVariant != "" {
		variant = modelregistry.Variant(cfg.ModelVariant)
	}
	return modelregistry.Key{Task: task, Variant: variant}
}

func severityFor(score float32) scanner.Severity {
	switch {
	case score >= 0.9:
		return scanner.Critical
	case score >= 0.7:
		return scanner.High
	case score >= 0.4:
		return scanner.Medium
	default:
		return scanner.Low
	}
}
