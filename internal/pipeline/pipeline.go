// Package pipeline composes an ordered list of scanner.Scanner into a single
// verdict, per spec.md §4.1. Scanners run sequentially or concurrently
// (golang.org/x/sync/errgroup, mirroring the teacher's goroutine-per-tunnel
// pattern in internal/proxy.handleTunnel generalized to a bounded fan-out
// instead of exactly two goroutines); results are always folded into
// sanitized text in configured order regardless of completion order, per
// spec.md §5.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/llmshield/gateway/internal/gwconfig"
	"github.com/llmshield/gateway/internal/gwerrors"
	"github.com/llmshield/gateway/internal/logger"
	"github.com/llmshield/gateway/internal/scanner"
	"github.com/llmshield/gateway/internal/telemetry"
)

// PipelineResult aggregates every scanner's ScanResult for one Run call.
type PipelineResult struct {
	ID               string
	IsValid          bool
	OverallRiskScore float32
	SanitizedText    string
	ScannerResults   []scanner.ScanResult
}

// Pipeline runs an ordered set of scanners against a single input.
type Pipeline struct {
	cfg      gwconfig.PipelineConfig
	scanners []scanner.Scanner
	log      *logger.Logger
	tel      *telemetry.Registry
}

// New validates cfg (ConfigError at construction, never at scan time, per
// spec.md §7) and returns a Pipeline over scanners in the given order. log
// and tel may be nil.
func New(cfg gwconfig.PipelineConfig, scanners []scanner.Scanner, log *logger.Logger, tel *telemetry.Registry) (*Pipeline, error) {
	if err := cfg.Validate("pipeline.New"); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.New("PIPELINE", "info")
	}
	return &Pipeline{cfg: cfg, scanners: scanners, log: log, tel: tel}, nil
}

// Run scans text through every configured scanner and aggregates the result.
// The returned error is non-nil only for pipeline-level misconfiguration;
// individual scanner failures always surface as findings (spec.md §7), never
// as a non-nil error here.
func (p *Pipeline) Run(ctx context.Context, text string, metadata map[string]string) (PipelineResult, error) {
	results := make([]scanner.ScanResult, len(p.scanners))

	if p.cfg.Parallel {
		if err := p.runParallel(ctx, text, metadata, results); err != nil {
			return PipelineResult{}, err
		}
	} else {
		p.runSequential(ctx, text, metadata, results)
	}

	return p.aggregate(text, results), nil
}

func (p *Pipeline) runSequential(ctx context.Context, text string, metadata map[string]string, results []scanner.ScanResult) {
	for i, s := range p.scanners {
		results[i] = p.runOne(ctx, s, text, metadata)
		if p.cfg.FailFast && hasCritical(results[i]) {
			// Mark the remainder as skipped-by-fail-fast rather than leaving
			// a zero-value ScanResult (which would misreport IsValid=false
			// with no findings, violating the ScanResult invariant).
			for j := i + 1; j < len(p.scanners); j++ {
				results[j] = scanner.Pass(p.scanners[j].Name(), text, scanner.DetectionDisabled)
			}
			break
		}
	}
}

func (p *Pipeline) runParallel(ctx context.Context, text string, metadata map[string]string, results []scanner.ScanResult) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range p.scanners {
		i, s := i, s
		g.Go(func() error {
			results[i] = p.runOne(gctx, s, text, metadata)
			return nil // scanner-level failures never abort the group; see runOne
		})
	}
	return g.Wait()
}

// runOne scans with s, enforcing the per-scanner timeout and converting
// errors/panics into findings rather than propagating them, per spec.md §7.
func (p *Pipeline) runOne(ctx context.Context, s scanner.Scanner, text string, metadata map[string]string) (result scanner.ScanResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = internalErrorResult(s.Name(), text, fmt.Errorf("panic: %v", r))
		}
		result.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		p.tel.RecordScan(s.Name(), result.DetectionMethod.String())
		for _, f := range result.Findings {
			p.tel.RecordFinding(s.Name(), f.Severity.String())
		}
		p.tel.ObserveScanLatency(s.Name(), result.LatencyMs)
	}()

	scanCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	resCh := make(chan scanResultOrErr, 1)
	go func() {
		// Scan runs on its own goroutine, so its panics must be recovered here.
		defer func() {
			if rec := recover(); rec != nil {
				resCh <- scanResultOrErr{result: internalErrorResult(s.Name(), text, fmt.Errorf("panic: %v", rec))}
			}
		}()
		r, err := s.Scan(scanCtx, text, metadata)
		resCh <- scanResultOrErr{r, err}
	}()

	select {
	case <-scanCtx.Done():
		p.log.Warnf("scan_timeout", "scanner=%s exceeded its deadline", s.Name())
		return timeoutResult(s.Name(), text)
	case re := <-resCh:
		if re.err != nil {
			return p.errorToResult(s.Name(), text, re.err)
		}
		return re.result
	}
}

type scanResultOrErr struct {
	result scanner.ScanResult
	err    error
}

// errorToResult converts a Scanner.Scan error into a ScanResult carrying a
// finding, per spec.md §7's "pipeline converts unhandled scanner errors into
// findings" policy. InvalidInput/Timeout/ModelError still surface — callers
// inspecting findings can recover the Kind from the finding's metadata.
func (p *Pipeline) errorToResult(name, text string, err error) scanner.ScanResult {
	kind, _ := gwerrors.KindOf(err)
	sev := scanner.High
	if kind == gwerrors.Timeout {
		return timeoutResult(name, text)
	}
	p.log.Errorf("scan_error", "scanner=%s kind=%s err=%v", name, kind, err)
	finding := scanner.NewFinding("scanner_error", sev, err.Error(), 0, len(text))
	finding.Metadata = map[string]string{"kind": kind.String()}
	return scanner.ScanResult{
		ScannerName:     name,
		IsValid:         false,
		RiskScore:       1,
		SanitizedInput:  text,
		DetectionMethod: scanner.DetectionDisabled,
		Findings:        []scanner.Finding{finding},
	}
}

func timeoutResult(name, text string) scanner.ScanResult {
	return scanner.ScanResult{
		ScannerName:     name,
		IsValid:         true, // a timeout signals degraded scanning, not a dangerous input (spec.md §7)
		RiskScore:       0,
		SanitizedInput:  text,
		DetectionMethod: scanner.DetectionDisabled,
		Findings: []scanner.Finding{
			scanner.NewFinding("timeout", scanner.High, fmt.Sprintf("scanner %s exceeded its deadline", name), 0, len(text)),
		},
	}
}

func internalErrorResult(name, text string, err error) scanner.ScanResult {
	return scanner.ScanResult{
		ScannerName:     name,
		IsValid:         true, // per spec.md §7: InternalError signals degradation, not necessarily a dangerous input
		RiskScore:       0,
		SanitizedInput:  text,
		DetectionMethod: scanner.DetectionDisabled,
		Findings: []scanner.Finding{
			scanner.NewFinding("internal_error", scanner.High, err.Error(), 0, len(text)),
		},
	}
}

func hasCritical(r scanner.ScanResult) bool {
	for _, f := range r.Findings {
		if f.Severity == scanner.Critical {
			return true
		}
	}
	return false
}

// aggregate folds per-scanner results into one PipelineResult. overall_risk
// is the max across scanners; is_valid is the logical AND gated additionally
// by max_risk_score; sanitized_text is folded in configured (not completion)
// order through foldSanitized, so the outcome is deterministic under parallel
// execution. Rewrites are not composed: the last rewriting scanner in
// configured order wins (see foldSanitized).
func (p *Pipeline) aggregate(original string, results []scanner.ScanResult) PipelineResult {
	out := PipelineResult{
		ID:             uuid.NewString(),
		IsValid:        true,
		SanitizedText:  original,
		ScannerResults: results,
	}
	for _, r := range results {
		if r.RiskScore > out.OverallRiskScore {
			out.OverallRiskScore = r.RiskScore
		}
		if !r.IsValid {
			out.IsValid = false
		}
		if r.SanitizedInput != original { // a non-rewriting scanner must not undo an earlier rewrite
			out.SanitizedText = foldSanitized(out.SanitizedText, r)
		}
	}
	if out.OverallRiskScore > p.cfg.MaxRiskScore {
		out.IsValid = false
	}
	return out
}

// foldSanitized applies one scanner's rewrite. Scanners that redact/replace
// spans return a SanitizedInput already derived from their own view of the
// text; folding simply threads that forward since spec.md's fold step is
// defined as scanner(text) -> text, not a diff/patch composition.
//
// Every scanner sees the pipeline's original input, not the prior scanner's
// output, so when more than one scanner rewrites the text this is
// last-writer-wins: the final rewriting scanner's SanitizedInput becomes the
// result, not a composition of every scanner's redactions. Composing
// rewrites would require re-running each scanner's detection against the
// previous scanner's output, which changes match offsets underfoot and is
// out of scope here.
func foldSanitized(text string, r scanner.ScanResult) string {
	if r.SanitizedInput == "" && text != "" {
		// A scanner that returned an empty SanitizedInput without having
		// actually processed anything (e.g. a disabled/no-op scanner with a
		// bug) must not wipe the pipeline's running text.
		return text
	}
	return r.SanitizedInput
}
