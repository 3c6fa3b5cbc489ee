// Package gwconfig holds the typed configuration structs consumed by the
// scanning engine's constructors. Unlike the teacher proxy's internal/config
// (a JSON-file + env-var cascade feeding a running proxy process), these are
// plain option structs: loading them from a file, flag set, or environment
// is the job of the excluded CLI/REST-façade collaborator, not this package.
// Construction-time validation still raises ConfigError per spec, since that
// is an ambient concern every scanner/pipeline/anonymizer needs regardless.
package gwconfig

import (
	"time"

	"github.com/llmshield/gateway/internal/gwerrors"
)

// HybridMode selects how a hybrid ML scanner decides between heuristic and
// model-backed confirmation.
type HybridMode int

// Recognized hybrid modes.
const (
	HeuristicOnly HybridMode = iota
	MLOnly
	Hybrid
	Both
)

func (m HybridMode) String() string {
	switch m {
	case HeuristicOnly:
		return "heuristic_only"
	case MLOnly:
		return "ml_only"
	case Hybrid:
		return "hybrid"
	case Both:
		return "both"
	default:
		return "unknown"
	}
}

// CacheConfig bounds a result cache instance.
type CacheConfig struct {
	Enabled bool
	MaxSize int
	TTL     time.Duration
}

// Validate checks internal consistency, raising ConfigError at construction
// time per spec (never at scan time).
func (c CacheConfig) Validate(op string) error {
	if c.MaxSize < 0 {
		return gwerrors.Config(op, "cache.max_size must be >= 0")
	}
	if c.TTL < 0 {
		return gwerrors.Config(op, "cache.ttl must be >= 0")
	}
	return nil
}

// DefaultCacheConfig returns a sane default: 1000 entries, 10 minute TTL.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, MaxSize: 1000, TTL: 10 * time.Minute}
}

// ScannerConfig is the common option set every ML-capable scanner accepts,
// per spec.md §6 "Scanner configuration objects" table.
type ScannerConfig struct {
	Enabled             bool
	ModelTask           string
	ModelVariant        string
	Threshold           float32
	FallbackToHeuristic bool
	Cache               CacheConfig
	HybridMode          HybridMode
}

// Validate enforces threshold bounds and cache consistency.
func (c ScannerConfig) Validate(op string) error {
	if c.Threshold < 0 || c.Threshold > 1 {
		return gwerrors.Config(op, "threshold must be in [0,1]")
	}
	if c.Cache.Enabled {
		if err := c.Cache.Validate(op); err != nil {
			return err
		}
	}
	return nil
}

// DefaultScannerConfig returns an enabled, hybrid-mode, fallback-enabled
// config with threshold 0.7 — the same tier the teacher assigns to its most
// specific regex patterns, reused here as a generically reasonable default.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		Enabled:             true,
		Threshold:           0.7,
		FallbackToHeuristic: true,
		Cache:               DefaultCacheConfig(),
		HybridMode:          Hybrid,
	}
}

// PipelineConfig configures a Pipeline's orchestration behavior, per
// spec.md §4.1.
type PipelineConfig struct {
	FailFast     bool
	Parallel     bool
	MaxRiskScore float32
	Timeout      time.Duration
}

// Validate enforces MaxRiskScore bounds and a positive timeout.
func (c PipelineConfig) Validate(op string) error {
	if c.MaxRiskScore < 0 || c.MaxRiskScore > 1 {
		return gwerrors.Config(op, "max_risk_score must be in [0,1]")
	}
	if c.Timeout <= 0 {
		return gwerrors.Config(op, "timeout must be > 0")
	}
	return nil
}

// DefaultPipelineConfig returns sequential execution, fail-fast disabled,
// max risk 1.0 (accept everything short of outright blocking), 5s per-scanner
// timeout.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{MaxRiskScore: 1.0, Timeout: 5 * time.Second}
}

// AnonymizerConfig configures session TTL, entity-confidence threshold, and
// detector choice, per spec.md §6 "Anonymizer configuration adds".
type AnonymizerConfig struct {
	VaultTTL            time.Duration
	ConfidenceThreshold float32
	Detector            DetectorKind
}

// DetectorKind selects which entity.Detector variant the anonymizer uses.
type DetectorKind int

// Recognized detector kinds.
const (
	DetectorRegex DetectorKind = iota
	DetectorNER
	DetectorHybrid
)

// Validate enforces confidence-threshold bounds and a positive TTL.
func (c AnonymizerConfig) Validate(op string) error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return gwerrors.Config(op, "confidence_threshold must be in [0,1]")
	}
	if c.VaultTTL <= 0 {
		return gwerrors.Config(op, "vault_ttl must be > 0")
	}
	return nil
}

// DefaultAnonymizerConfig returns a 30-minute vault TTL, confidence threshold
// 0.6, hybrid detector.
func DefaultAnonymizerConfig() AnonymizerConfig {
	return AnonymizerConfig{VaultTTL: 30 * time.Minute, ConfidenceThreshold: 0.6, Detector: DetectorHybrid}
}

// LoaderConfig configures constructed inference sessions.
type LoaderConfig struct {
	ThreadPoolSize   int
	OptimizationLevel string
}

// DefaultLoaderConfig returns a 4-thread pool at the "default" optimization level.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{ThreadPoolSize: 4, OptimizationLevel: "default"}
}

// RegistryConfig configures the model registry's local cache directory and
// download behavior.
type RegistryConfig struct {
	CacheDir            string
	MaxDownloadsPerSec  float64 // token-bucket rate, 0 = unlimited
}

// DefaultRegistryConfig returns cache_dir "~/.cache/llmshield/models" and an
// unlimited download rate.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{CacheDir: "~/.cache/llmshield/models"}
}
