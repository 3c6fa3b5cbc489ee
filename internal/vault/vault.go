// Package vault stores per-session entity→placeholder mappings so
// anonymized text can later be reversed, per spec.md §4.9/§4.10. Session
// ids are opaque, collision-checked random tokens with a TTL; each
// session's mapping table is guarded by its own mutex nested under the
// vault's outer RWMutex, so concurrent writers to different sessions never
// contend (spec.md §5 "lock scoped to each session").
package vault

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/llmshield/gateway/internal/entity"
)

// EntityMapping is one reversible placeholder→original binding.
type EntityMapping struct {
	Placeholder string
	Type        entity.Type
	Original    string
}

// AuditEvent records a vault operation without ever carrying raw PII
// values, per spec.md §4.9 "never raw values".
type AuditEvent struct {
	Kind         string // "anonymize" | "missing_mapping"
	SessionID    string
	EntityCount  int
	Timestamp    time.Time
}

type session struct {
	mu        sync.Mutex
	mappings  map[string]EntityMapping
	expiresAt time.Time
}

// Vault holds every live session's mapping table.
type Vault struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

// New returns an empty Vault.
func New() *Vault {
	return &Vault{sessions: make(map[string]*session)}
}

// NewSession creates a fresh session id ("sess_" + 12 hex chars from
// crypto/rand, retried on the astronomically unlikely collision) with the
// given ttl, and registers an empty mapping table for it.
func (v *Vault) NewSession(ttl time.Duration) (string, error) {
	for {
		id, err := randomSessionID()
		if err != nil {
			return "", err
		}

		v.mu.Lock()
		if _, exists := v.sessions[id]; exists {
			v.mu.Unlock()
			continue
		}
		v.sessions[id] = &session{
			mappings:  make(map[string]EntityMapping),
			expiresAt: time.Now().Add(ttl),
		}
		v.mu.Unlock()
		return id, nil
	}
}

func randomSessionID() (string, error) {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "sess_" + hex.EncodeToString(buf[:]), nil
}

// Store records mapping under sessionID. A missing or expired session is a
// no-op error, never created implicitly — sessions are only created via
// NewSession.
func (v *Vault) Store(sessionID string, mapping EntityMapping) error {
	s, ok := v.lookupLive(sessionID)
	if !ok {
		return fmt.Errorf("vault: unknown or expired session %q", sessionID)
	}
	s.mu.Lock()
	s.mappings[mapping.Placeholder] = mapping
	s.mu.Unlock()
	return nil
}

// Get returns the mapping for placeholder under sessionID. Absent on a
// missing session, an expired session (re-checked at read time, per spec.md
// §8 property 9), or an unknown placeholder.
func (v *Vault) Get(sessionID, placeholder string) (EntityMapping, bool) {
	s, ok := v.lookupLive(sessionID)
	if !ok {
		return EntityMapping{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.mappings[placeholder]
	return m, ok
}

// DeleteSession removes sessionID if present; never errors.
func (v *Vault) DeleteSession(sessionID string) {
	v.mu.Lock()
	delete(v.sessions, sessionID)
	v.mu.Unlock()
}

// CleanupExpired deletes every session whose TTL has passed and returns how
// many were removed. Tolerant of a concurrent deletion race (delete-if-exists
// semantics).
func (v *Vault) CleanupExpired() int {
	now := time.Now()

	v.mu.Lock()
	defer v.mu.Unlock()

	removed := 0
	for id, s := range v.sessions {
		if now.After(s.expiresAt) {
			delete(v.sessions, id)
			removed++
		}
	}
	return removed
}

// lookupLive returns sessionID's session if it exists and has not expired.
func (v *Vault) lookupLive(sessionID string) (*session, bool) {
	v.mu.RLock()
	s, ok := v.sessions[sessionID]
	v.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Now().After(s.expiresAt) {
		return nil, false
	}
	return s, true
}
