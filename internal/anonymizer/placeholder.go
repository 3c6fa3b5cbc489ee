// Package anonymizer turns detected entities into reversible placeholder
// tokens, stores the mapping in a vault.Vault, and reverses the
// substitution later — the same shape as the teacher's token
// replace/restore cycle, generalized onto entity.Detector and vault.Vault
// instead of a flat regex table and session map.
package anonymizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/llmshield/gateway/internal/entity"
)

// PlaceholderGenerator produces "[TYPE_N]" tokens with a counter per
// entity.Type. It is scoped to a single Anonymize call, not shared across
// sessions — spec.md §9 warns against making the counters global, since a
// global counter would leak the relative volume of PII across unrelated
// requests through the numbering itself.
type PlaceholderGenerator struct {
	mu       sync.Mutex
	counters map[entity.Type]uint64
}

// NewPlaceholderGenerator returns a generator with all counters at zero.
func NewPlaceholderGenerator() *PlaceholderGenerator {
	return &PlaceholderGenerator{counters: make(map[entity.Type]uint64)}
}

// Generate returns the next placeholder for t, e.g. "[EMAIL_1]", "[EMAIL_2]".
// The type name is upper-cased so the token matches the
// \[([A-Z][A-Z_]*)_(\d+)\] grammar the deanonymizer scans for.
func (g *PlaceholderGenerator) Generate(t entity.Type) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[t]++
	return fmt.Sprintf("[%s_%d]", strings.ToUpper(string(t)), g.counters[t])
}
