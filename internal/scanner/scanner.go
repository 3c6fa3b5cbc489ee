// Package scanner defines the contract every scanner implements (spec.md
// §4.1) and the data model it produces (spec.md §3): ScanResult, Finding,
// Severity, DetectionMethod. The Pipeline that composes scanners lives in
// the sibling internal/pipeline package to keep the contract free of
// orchestration concerns, matching the teacher's convention of one package
// per concern (anonymizer, cache, config, metrics all separate).
package scanner

import (
	"context"

	"github.com/google/uuid"
)

// Severity classifies how serious a Finding is.
type Severity int

// Finding severities, lowest to highest.
const (
	Low Severity = iota
	Medium
	High
	Critical
)

func (s Severity) String() string {
	switch s {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// DetectionMethod records which decision path in a hybrid scanner produced a
// ScanResult, per spec.md §4.7.
type DetectionMethod int

// Recognized detection methods.
const (
	DetectionDisabled DetectionMethod = iota
	DetectionHeuristicShortCircuit
	DetectionML
	DetectionBoth
	DetectionMLFallbackToHeuristic
	DetectionCached
)

func (d DetectionMethod) String() string {
	switch d {
	case DetectionDisabled:
		return "disabled"
	case DetectionHeuristicShortCircuit:
		return "heuristic_short_circuit"
	case DetectionML:
		return "ml"
	case DetectionBoth:
		return "both"
	case DetectionMLFallbackToHeuristic:
		return "ml_fallback_to_heuristic"
	case DetectionCached:
		return "cached"
	default:
		return "unknown"
	}
}

// Finding describes one detected issue within the original input. Start/End
// are half-open byte offsets into the original (pre-sanitization) text.
type Finding struct {
	ID          string
	Category    string
	Severity    Severity
	Description string
	Start, End  int
	Metadata    map[string]string
}

// NewFinding stamps a fresh correlation id onto a Finding. Using this
// constructor (rather than a literal) everywhere keeps every finding
// addressable across the telemetry stream per SPEC_FULL.md §4.
func NewFinding(category string, severity Severity, description string, start, end int) Finding {
	return Finding{
		ID:          uuid.NewString(),
		Category:    category,
		Severity:    severity,
		Description: description,
		Start:       start,
		End:         end,
	}
}

// ScanResult is the unit of scanner output, per spec.md §3.
type ScanResult struct {
	ScannerName     string
	IsValid         bool
	RiskScore       float32 // must stay in [0,1]; see ClampRiskScore
	SanitizedInput  string
	Findings        []Finding
	LatencyMs       float64
	DetectionMethod DetectionMethod
}

// ClampRiskScore forces v into [0,1], satisfying the ScanResult invariant
// even if an upstream computation (e.g. a buggy heuristic score) produced an
// out-of-range value. Production code paths call this rather than panicking,
// per spec.md §7 ("never panics the process"); tests may assert the input
// was already in range.
func ClampRiskScore(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Pass returns a valid, zero-risk, finding-free result for scanner, used by
// every heuristic scanner's empty-input boundary case (spec.md §8) and by
// any scanner short-circuiting via `enabled: false` (spec.md §6 table).
func Pass(scannerName, sanitizedInput string, method DetectionMethod) ScanResult {
	return ScanResult{
		ScannerName:     scannerName,
		IsValid:         true,
		RiskScore:       0,
		SanitizedInput:  sanitizedInput,
		DetectionMethod: method,
	}
}

// Scanner is the contract every pluggable text scanner implements. A scanner
// must be referentially transparent given identical (text, configuration) so
// results are cacheable, and must never panic on malformed input — returning
// a *gwerrors.Error of kind InvalidInput/ModelError/Timeout instead.
type Scanner interface {
	// Name is a stable identifier used for cache keys, telemetry labels, and
	// pipeline ordering diagnostics.
	Name() string

	// RequiresModels reports whether Initialize must be called with a valid
	// model path before Scan can run in ML-backed modes.
	RequiresModels() bool

	// Initialize prepares the scanner to use models at modelPath. Must be
	// idempotent: calling it twice with the same path is a no-op the second
	// time. Scanners with RequiresModels() == false may implement this as a
	// no-op (see BaseScanner).
	Initialize(ctx context.Context, modelPath string) error

	// Scan inspects text and returns a ScanResult. metadata carries
	// caller-supplied context (e.g. request id) scanners may use for
	// logging but must not let influence the result, to preserve
	// referential transparency.
	Scan(ctx context.Context, text string, metadata map[string]string) (ScanResult, error)
}

// BaseScanner provides a no-op Initialize for scanners that never touch a
// model file, so they only need to implement Name/RequiresModels/Scan.
type BaseScanner struct{}

// Initialize is a no-op satisfying the Scanner interface for heuristic-only scanners.
func (BaseScanner) Initialize(context.Context, string) error { return nil }
