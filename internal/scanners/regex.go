package scanners

import (
	"context"
	"regexp"
	"sort"

	"github.com/llmshield/gateway/internal/scanner"
)

// RegexRule pairs a compiled pattern with the finding metadata it produces.
type RegexRule struct {
	Pattern  *regexp.Regexp
	Category string
	Severity scanner.Severity
}

// RegexScanner flags/redacts input matching any of a caller-supplied set of
// rules. Heuristic-only, generic — used directly for the email scenario
// (spec.md §8 scenario 2). The entity detector's regex variant
// (internal/entity) is a separate implementation and does not use it.
type RegexScanner struct {
	scanner.BaseScanner
	name  string
	rules []RegexRule
}

// NewRegexScanner constructs a RegexScanner over rules.
func NewRegexScanner(name string, rules []RegexRule) *RegexScanner {
	return &RegexScanner{name: name, rules: rules}
}

func (s *RegexScanner) Name() string        { return s.name }
func (s *RegexScanner) RequiresModels() bool { return false }

type regexMatch struct {
	start, end int
	category   string
	severity   scanner.Severity
}

func (s *RegexScanner) Scan(_ context.Context, text string, _ map[string]string) (scanner.ScanResult, error) {
	var matches []regexMatch
	for _, rule := range s.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			matches = append(matches, regexMatch{start: loc[0], end: loc[1], category: rule.Category, severity: rule.Severity})
		}
	}

	if len(matches) == 0 {
		return scanner.Pass(s.name, text, scanner.DetectionHeuristicShortCircuit), nil
	}

	findings := make([]scanner.Finding, 0, len(matches))
	maxSeverity := scanner.Low
	for _, m := range matches {
		findings = append(findings, scanner.NewFinding(m.category, m.severity,
			"input matched a "+m.category+" pattern", m.start, m.end))
		if m.severity > maxSeverity {
			maxSeverity = m.severity
		}
	}

	sorted := append([]regexMatch(nil), matches...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start > sorted[j].start })
	out := []byte(text)
	for _, m := range sorted {
		if m.start < 0 || m.end > len(out) || m.start > m.end {
			continue
		}
		placeholder := "[" + m.category + "]"
		spliced := make([]byte, 0, len(out)-(m.end-m.start)+len(placeholder))
		spliced = append(spliced, out[:m.start]...)
		spliced = append(spliced, placeholder...)
		spliced = append(spliced, out[m.end:]...)
		out = spliced
	}

	return scanner.ScanResult{
		ScannerName:     s.name,
		IsValid:         false,
		RiskScore:       scanner.ClampRiskScore(0.3 + 0.1*float32(maxSeverity)),
		SanitizedInput:  string(out),
		Findings:        findings,
		DetectionMethod: scanner.DetectionHeuristicShortCircuit,
	}, nil
}
