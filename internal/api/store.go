package api

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/raven-automation/ravenctl/internal/core"
)

// Phase names the lifecycle stage of the session state store.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseError   Phase = "error"
)

// Snapshot is the store's immutable view of the session: a tagged union
// over the three phases. Auth is non-nil iff Phase is PhaseReady; Reason is
// meaningful iff Phase is PhaseError. Snapshots are replaced wholesale,
// never mutated, so readers never observe a torn state.
type Snapshot struct {
	Phase  Phase
	Auth   *core.AuthState
	Reason string
}

// Store holds the current authentication/session snapshot, derived from the
// bootstrap endpoint. One store exists per application; consumers subscribe
// to snapshot replacements instead of polling.
type Store struct {
	mu        sync.Mutex
	transport *Transport
	snap      Snapshot
	observers map[int]func(Snapshot)
	nextObs   int
	logger    zerolog.Logger
}

// NewStore creates a store in the loading phase. Call Bootstrap (or Reload)
// to perform the initial session fetch.
func NewStore(transport *Transport, logger zerolog.Logger) *Store {
	return &Store{
		transport: transport,
		snap:      Snapshot{Phase: PhaseLoading},
		observers: make(map[int]func(Snapshot)),
		logger:    logger,
	}
}

// Transport returns the transport the store bootstraps through.
func (s *Store) Transport() *Transport {
	return s.transport
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers an observer invoked on every snapshot replacement.
// The returned function removes the observer.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// Bootstrap performs the initial session fetch. It is Reload under the name
// the application root uses at startup.
func (s *Store) Bootstrap(ctx context.Context) *core.AuthState {
	return s.Reload(ctx)
}

// Reload fetches the session bootstrap endpoint. On success the returned
// AuthState replaces the snapshot and any error is cleared; on failure the
// snapshot moves to the error phase carrying the transport's reason text,
// and nil is returned. Safe to call from any consumer, e.g. after login.
func (s *Store) Reload(ctx context.Context) *core.AuthState {
	resp := s.transport.Do(ctx, "/", nil)

	if !resp.Success {
		s.logger.Warn().Int("status", resp.StatusCode).Str("reason", resp.StatusText).Msg("session bootstrap failed")
		s.replace(Snapshot{Phase: PhaseError, Reason: resp.StatusText})
		return nil
	}

	auth := DecodeOr[*core.AuthState](resp, nil)
	if auth == nil {
		s.logger.Warn().Msg("session bootstrap returned an unreadable payload")
		s.replace(Snapshot{Phase: PhaseError, Reason: "malformed session payload"})
		return nil
	}

	s.logger.Debug().Str("session", auth.Session.ID).Bool("authenticated", auth.Authenticated()).Msg("session loaded")
	s.replace(Snapshot{Phase: PhaseReady, Auth: auth})
	return auth
}

func (s *Store) replace(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}
