package scanners

import (
	"bytes"
	"context"
	"fmt"

	"github.com/llmshield/gateway/internal/gwerrors"
	"github.com/llmshield/gateway/internal/scanner"
)

// LimitsScanner enforces hard input-size preconditions. Unlike every other
// scanner in this package, a violation is an InvalidInput error, not a
// ScanResult — spec.md §4.1's scan error contract distinguishes
// "text violates length/encoding preconditions" from an ordinary finding.
type LimitsScanner struct {
	scanner.BaseScanner
	name      string
	maxBytes  int
	maxLines  int
}

// NewLimitsScanner returns a LimitsScanner. maxBytes/maxLines <= 0 disables
// that particular check.
func NewLimitsScanner(name string, maxBytes, maxLines int) *LimitsScanner {
	return &LimitsScanner{name: name, maxBytes: maxBytes, maxLines: maxLines}
}

func (s *LimitsScanner) Name() string        { return s.name }
func (s *LimitsScanner) RequiresModels() bool { return false }

func (s *LimitsScanner) Scan(_ context.Context, text string, _ map[string]string) (scanner.ScanResult, error) {
	if s.maxBytes > 0 && len(text) > s.maxBytes {
		return scanner.ScanResult{}, gwerrors.Invalid(s.name,
			fmt.Sprintf("input length %d exceeds max_bytes %d", len(text), s.maxBytes))
	}
	if s.maxLines > 0 {
		lines := bytes.Count([]byte(text), []byte("\n")) + 1
		if lines > s.maxLines {
			return scanner.ScanResult{}, gwerrors.Invalid(s.name,
				fmt.Sprintf("input has %d lines, exceeds max_lines %d", lines, s.maxLines))
		}
	}
	return scanner.Pass(s.name, text, scanner.DetectionHeuristicShortCircuit), nil
}
