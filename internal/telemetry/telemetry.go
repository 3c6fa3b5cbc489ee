// Package telemetry wraps prometheus counters/histograms for the scanning
// engine. Every method has a nil-receiver no-op path so components can hold
// a `*telemetry.Registry` field that is nil by default (tests, embedders
// that don't want metrics) — mirroring the teacher proxy's `m *metrics.Metrics`
// nil-means-disabled convention, just backed by a real metrics library.
package telemetry

import "github.com/prometheus/client_golang/prometheus"

// Registry holds all counters/histograms for one running engine instance.
// Register it with a prometheus.Registerer of the embedder's choosing via
// MustRegisterAll; the zero value obtained from New() is otherwise
// self-contained (not auto-registered to the default registry, so embedding
// multiple engines in one process never collides).
type Registry struct {
	ScansTotal       *prometheus.CounterVec // labels: scanner, detection_method
	FindingsTotal    *prometheus.CounterVec // labels: scanner, severity
	CacheHits        *prometheus.CounterVec // labels: scanner
	CacheMisses      *prometheus.CounterVec // labels: scanner
	OllamaDispatches prometheus.Counter
	OllamaErrors     prometheus.Counter
	TokensReplaced   prometheus.Counter
	TokensRestored   prometheus.Counter
	ScanLatency      *prometheus.HistogramVec // labels: scanner
	InferenceLatency prometheus.Histogram
	LoaderLoads      prometheus.Counter
	LoaderHits       prometheus.Counter
}

// New constructs a fully wired Registry. Pass the result to MustRegisterAll
// if the caller wants these metrics exposed on a /metrics endpoint; otherwise
// it is safe to keep unregistered and only read via the Prometheus client's
// in-process interfaces (e.g. testutil).
func New() *Registry {
	return &Registry{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_scans_total",
			Help: "Total scans performed, by scanner and detection method.",
		}, []string{"scanner", "detection_method"}),
		FindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_findings_total",
			Help: "Total findings emitted, by scanner and severity.",
		}, []string{"scanner", "severity"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cache_hits_total",
			Help: "Result-cache hits, by scanner.",
		}, []string{"scanner"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_cache_misses_total",
			Help: "Result-cache misses, by scanner.",
		}, []string{"scanner"}),
		OllamaDispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_ml_dispatches_total",
			Help: "Async ML confirmation calls dispatched.",
		}),
		OllamaErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_ml_errors_total",
			Help: "ML confirmation calls that failed.",
		}),
		TokensReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_pii_tokens_replaced_total",
			Help: "PII entities replaced with placeholders.",
		}),
		TokensRestored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_pii_tokens_restored_total",
			Help: "PII placeholders restored by the deanonymizer.",
		}),
		ScanLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gateway_scan_latency_ms",
			Help:    "Per-scanner scan latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"scanner"}),
		InferenceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_inference_latency_ms",
			Help:    "Inference-engine call latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		LoaderLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_loader_loads_total",
			Help: "Model loader Load() calls, including cache hits.",
		}),
		LoaderHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_loader_hits_total",
			Help: "Model loader Load() calls served from the existing session map.",
		}),
	}
}

// MustRegisterAll registers every collector on reg. Panics on duplicate
// registration, matching prometheus's own MustRegister convention.
func (r *Registry) MustRegisterAll(reg prometheus.Registerer) {
	if r == nil {
		return
	}
	reg.MustRegister(
		r.ScansTotal, r.FindingsTotal, r.CacheHits, r.CacheMisses,
		r.OllamaDispatches, r.OllamaErrors, r.TokensReplaced, r.TokensRestored,
		r.ScanLatency, r.InferenceLatency, r.LoaderLoads, r.LoaderHits,
	)
}

// RecordScan is nil-safe.
func (r *Registry) RecordScan(scanner, detectionMethod string) {
	if r == nil {
		return
	}
	r.ScansTotal.WithLabelValues(scanner, detectionMethod).Inc()
}

// RecordFinding is nil-safe.
func (r *Registry) RecordFinding(scanner, severity string) {
	if r == nil {
		return
	}
	r.FindingsTotal.WithLabelValues(scanner, severity).Inc()
}

// RecordCacheHit is nil-safe.
func (r *Registry) RecordCacheHit(scanner string) {
	if r == nil {
		return
	}
	r.CacheHits.WithLabelValues(scanner).Inc()
}

// RecordCacheMiss is nil-safe.
func (r *Registry) RecordCacheMiss(scanner string) {
	if r == nil {
		return
	}
	r.CacheMisses.WithLabelValues(scanner).Inc()
}

// RecordMLDispatch is nil-safe.
func (r *Registry) RecordMLDispatch() {
	if r == nil {
		return
	}
	r.OllamaDispatches.Inc()
}

// RecordMLError is nil-safe.
func (r *Registry) RecordMLError() {
	if r == nil {
		return
	}
	r.OllamaErrors.Inc()
}

// RecordTokensReplaced is nil-safe.
func (r *Registry) RecordTokensReplaced(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.TokensReplaced.Add(float64(n))
}

// RecordTokensRestored is nil-safe.
func (r *Registry) RecordTokensRestored(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.TokensRestored.Add(float64(n))
}

// ObserveScanLatency is nil-safe.
func (r *Registry) ObserveScanLatency(scanner string, ms float64) {
	if r == nil {
		return
	}
	r.ScanLatency.WithLabelValues(scanner).Observe(ms)
}

// ObserveInferenceLatency is nil-safe.
func (r *Registry) ObserveInferenceLatency(ms float64) {
	if r == nil {
		return
	}
	r.InferenceLatency.Observe(ms)
}

// RecordLoaderLoad is nil-safe.
func (r *Registry) RecordLoaderLoad(hit bool) {
	if r == nil {
		return
	}
	r.LoaderLoads.Inc()
	if hit {
		r.LoaderHits.Inc()
	}
}
