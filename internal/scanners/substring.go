// Package scanners implements the concrete scanner.Scanner backends:
// banned-substring matching, generic regex rules, hard input-size limits,
// and the hybrid heuristic/ML scanners (prompt injection, toxicity,
// sentiment).
package scanners

import (
	"context"
	"sort"

	"github.com/llmshield/gateway/internal/scanner"
)

// SubstringScanner fails any input containing one of a fixed set of banned
// substrings, redacting each occurrence to "[REDACTED]". Heuristic-only,
// per spec.md §8 scenario 1.
type SubstringScanner struct {
	scanner.BaseScanner
	name      string
	automaton *ahoAutomaton
}

// NewSubstringScanner compiles banned into an Aho-Corasick automaton.
func NewSubstringScanner(name string, banned []string) *SubstringScanner {
	return &SubstringScanner{name: name, automaton: buildAho(banned)}
}

func (s *SubstringScanner) Name() string          { return s.name }
func (s *SubstringScanner) RequiresModels() bool   { return false }

func (s *SubstringScanner) Scan(_ context.Context, text string, _ map[string]string) (scanner.ScanResult, error) {
	matches := s.automaton.scan([]byte(text))
	if len(matches) == 0 {
		return scanner.Pass(s.name, text, scanner.DetectionHeuristicShortCircuit), nil
	}

	findings := make([]scanner.Finding, 0, len(matches))
	for _, m := range matches {
		findings = append(findings, scanner.NewFinding("banned_substring", scanner.High,
			"input contains a banned substring", m.Start, m.End))
	}

	sanitized := redactDescending(text, matches)

	return scanner.ScanResult{
		ScannerName:     s.name,
		IsValid:         false,
		RiskScore:       scanner.ClampRiskScore(0.5 + 0.1*float32(len(matches)-1)),
		SanitizedInput:  sanitized,
		Findings:        findings,
		DetectionMethod: scanner.DetectionHeuristicShortCircuit,
	}, nil
}

// redactDescending replaces each match span with "[REDACTED]". Overlapping
// spans are first merged into one, then the merged spans are spliced in
// descending start order so earlier spans' byte offsets stay valid (the
// same reverse-order replacement discipline spec.md §4.9 requires of the
// anonymizer's Replace).
func redactDescending(text string, matches []ahoMatch) string {
	sorted := append([]ahoMatch(nil), matches...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var merged []ahoMatch
	for _, m := range sorted {
		if n := len(merged); n > 0 && m.Start < merged[n-1].End {
			merged[n-1].End = max(merged[n-1].End, m.End)
			continue
		}
		merged = append(merged, m)
	}

	out := []byte(text)
	for i := len(merged) - 1; i >= 0; i-- {
		m := merged[i]
		if m.Start < 0 || m.End > len(out) || m.Start > m.End {
			continue
		}
		spliced := make([]byte, 0, len(out)-(m.End-m.Start)+len("[REDACTED]"))
		spliced = append(spliced, out[:m.Start]...)
		spliced = append(spliced, "[REDACTED]"...)
		spliced = append(spliced, out[m.End:]...)
		out = spliced
	}
	return string(out)
}
