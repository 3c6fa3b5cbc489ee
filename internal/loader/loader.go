// Package loader turns a modelregistry.Key into a ready-to-use
// inference.Session, caching sessions across calls so repeated Load calls
// for the same (task, variant) never re-pay construction cost, per
// spec.md §4.4.
package loader

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/llmshield/gateway/internal/gwconfig"
	"github.com/llmshield/gateway/internal/gwerrors"
	"github.com/llmshield/gateway/internal/inference"
	"github.com/llmshield/gateway/internal/logger"
	"github.com/llmshield/gateway/internal/modelregistry"
	"github.com/llmshield/gateway/internal/telemetry"
)

// Session is a loaded model handle. It is safe to share across goroutines —
// Load hands out the same *Session to every caller requesting the same key —
// so "cloning" a handle is simply returning the pointer and bumping refs,
// used only for Unload's close-on-drop-to-zero bookkeeping.
type Session struct {
	inference.Session
	refs atomic.Int64
}

// Loader resolves model files via a modelregistry.Registry and constructs
// inference.Session handles, keeping at most one Session alive per key.
type Loader struct {
	mu       sync.RWMutex
	sessions map[modelregistry.Key]*Session
	reg      *modelregistry.Registry
	sf       singleflight.Group
	cfg      gwconfig.LoaderConfig
	log      *logger.Logger
	tel      *telemetry.Registry

	// newSession is the Session constructor, a field rather than a direct
	// call to inference.New so tests can substitute a fake without linking
	// a real model backend.
	newSession func(ctx context.Context, modelPath string, cfg gwconfig.LoaderConfig) (inference.Session, error)
}

// New constructs a Loader over reg using cfg for every constructed session.
// log and tel may be nil.
func New(reg *modelregistry.Registry, cfg gwconfig.LoaderConfig, log *logger.Logger, tel *telemetry.Registry) *Loader {
	if log == nil {
		log = logger.New("LOADER", "info")
	}
	return &Loader{
		sessions:   make(map[modelregistry.Key]*Session),
		reg:        reg,
		cfg:        cfg,
		log:        log,
		tel:        tel,
		newSession: inference.New,
	}
}

// Load returns the Session for key, constructing and caching it on first use.
func (l *Loader) Load(ctx context.Context, key modelregistry.Key) (*Session, error) {
	if s, ok := l.lookup(key); ok {
		l.tel.RecordLoaderLoad(true)
		return s, nil
	}

	v, err, _ := l.sf.Do(key.String(), func() (any, error) {
		// Recheck without bumping refs: the reference is taken below.
		l.mu.RLock()
		existing, ok := l.sessions[key]
		l.mu.RUnlock()
		if ok {
			return existing, nil
		}

		path, err := l.reg.EnsureAvailable(ctx, key)
		if err != nil {
			return nil, err
		}

		backend, err := l.newSession(ctx, path, l.cfg)
		if err != nil {
			return nil, gwerrors.Model("loader.Load", gwerrors.CauseIO, err)
		}

		s := &Session{Session: backend}

		l.mu.Lock()
		l.sessions[key] = s
		l.mu.Unlock()

		l.log.Infof("model_loaded", "task=%s variant=%s path=%s", key.Task, key.Variant, path)
		return s, nil
	})
	if err != nil {
		l.tel.RecordLoaderLoad(false)
		return nil, err
	}

	s := v.(*Session)
	s.refs.Add(1)
	l.tel.RecordLoaderLoad(false)
	return s, nil
}

func (l *Loader) lookup(key modelregistry.Key) (*Session, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.sessions[key]
	if ok {
		s.refs.Add(1)
	}
	return s, ok
}

// Preload loads every key in order, stopping at the first error — spec.md
// §4.4's "aborting on first irrecoverable failure" startup contract.
func (l *Loader) Preload(ctx context.Context, keys []modelregistry.Key) error {
	for _, k := range keys {
		if _, err := l.Load(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Unload releases one reference to key's session, closing the underlying
// backend and removing it from the cache once the refcount reaches zero.
func (l *Loader) Unload(key modelregistry.Key) error {
	l.mu.Lock()
	s, ok := l.sessions[key]
	if !ok {
		l.mu.Unlock()
		return nil
	}
	remaining := s.refs.Add(-1)
	if remaining > 0 {
		l.mu.Unlock()
		return nil
	}
	delete(l.sessions, key)
	l.mu.Unlock()

	return s.Close()
}

// UnloadAll closes and removes every cached session regardless of refcount,
// used at shutdown.
func (l *Loader) UnloadAll() error {
	l.mu.Lock()
	sessions := l.sessions
	l.sessions = make(map[modelregistry.Key]*Session)
	l.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
