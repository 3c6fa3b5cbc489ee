package anonymizer

import (
	"context"
	"sort"
	"time"

	"github.com/llmshield/gateway/internal/entity"
	"github.com/llmshield/gateway/internal/logger"
	"github.com/llmshield/gateway/internal/telemetry"
	"github.com/llmshield/gateway/internal/vault"
)

// AnonymizeResult is the outcome of one Anonymize call.
type AnonymizeResult struct {
	AnonymizedText string
	SessionID      string
	Entities       []entity.Match
}

// Anonymizer detects entities in text, replaces each with a reversible
// placeholder, and records the mapping in a vault session.
type Anonymizer struct {
	detector entity.Detector
	vault    *vault.Vault
	ttl      time.Duration
	auditLog func(vault.AuditEvent)
	tel      *telemetry.Registry
	log      *logger.Logger
}

// New returns an Anonymizer. auditLog may be nil, in which case audit
// events are dropped. log may be nil, in which case a default
// "ANONYMIZER"-tagged logger is used.
func New(detector entity.Detector, v *vault.Vault, ttl time.Duration, auditLog func(vault.AuditEvent), tel *telemetry.Registry, log *logger.Logger) *Anonymizer {
	if log == nil {
		log = logger.New("ANONYMIZER", "info")
	}
	return &Anonymizer{detector: detector, vault: v, ttl: ttl, auditLog: auditLog, tel: tel, log: log}
}

// Anonymize detects every entity in text, replaces it with a placeholder in
// [TYPE_N] form, and stores the reversing mapping under a fresh vault
// session. A session is created even when no entities are found, so a
// caller can always pass the returned SessionID to Deanonymize without
// special-casing the empty case.
func (a *Anonymizer) Anonymize(ctx context.Context, text string) (AnonymizeResult, error) {
	matches, err := a.detector.Detect(ctx, text)
	if err != nil {
		return AnonymizeResult{}, err
	}

	// Source order: placeholder numbering follows where entities appear in
	// the text, not detector-return order (regex/NER/hybrid each have their
	// own internal ordering).
	sorted := make([]entity.Match, len(matches))
	copy(sorted, matches)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	sessionID, err := a.vault.NewSession(a.ttl)
	if err != nil {
		return AnonymizeResult{}, err
	}

	gen := NewPlaceholderGenerator()
	placeholders := make([]string, len(sorted))
	for i, m := range sorted {
		ph := gen.Generate(m.Type)
		placeholders[i] = ph
		if err := a.vault.Store(sessionID, vault.EntityMapping{
			Placeholder: ph,
			Type:        m.Type,
			Original:    m.Value,
		}); err != nil {
			return AnonymizeResult{}, err
		}
	}

	anonymized, err := Replace(text, sorted, placeholders)
	if err != nil {
		return AnonymizeResult{}, err
	}

	if a.tel != nil {
		a.tel.RecordTokensReplaced(len(sorted))
	}
	a.emit(vault.AuditEvent{Kind: "anonymize", SessionID: sessionID, EntityCount: len(sorted), Timestamp: time.Now()})

	return AnonymizeResult{AnonymizedText: anonymized, SessionID: sessionID, Entities: sorted}, nil
}

func (a *Anonymizer) emit(ev vault.AuditEvent) {
	if a.auditLog != nil {
		a.auditLog(ev)
	}
}
