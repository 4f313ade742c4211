package core

// session.go holds the per-operator state that the controllers share.
//
// A Session owns one Ledger and the two controllers that write to it. The
// ledger is their only shared channel. Sessions live in memory only; the web
// layer starts a new one on every page load so nothing survives a reload.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/erpload/internal/logging"
	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 2 * time.Hour

// Session is the state of one operator page.
type Session struct {
	ID      string
	Created time.Time

	Ledger *Ledger
	Intake *IntakeController
	Folio  *FolioController

	mu       sync.Mutex
	lastSeen time.Time
}

// NewSession wires a fresh ledger and controllers around backend.
func NewSession(id string, backend Backend, opts IntakeOptions) *Session {
	ledger := NewLedger()
	now := time.Now()
	return &Session{
		ID:       id,
		Created:  now,
		Ledger:   ledger,
		Intake:   NewIntakeController(backend, ledger, opts),
		Folio:    NewFolioController(backend, ledger),
		lastSeen: now,
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionOptions configures a SessionStore.
type SessionOptions struct {
	TTL    time.Duration
	Intake IntakeOptions
}

// SessionStore keeps live sessions keyed by ID.
type SessionStore struct {
	backend Backend
	opts    SessionOptions
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore(backend Backend, opts SessionOptions) *SessionStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultSessionTTL
	}
	return &SessionStore{
		backend:  backend,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Start creates a session and loads the current folio for it. A failed
// folio fetch is recorded in the session ledger, not returned.
func (st *SessionStore) Start(ctx context.Context) *Session {
	sess := NewSession(uuid.NewString(), st.backend, st.opts.Intake)

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()

	ctx = logging.WithSessionID(ctx, sess.ID)
	_ = sess.Folio.FetchCurrent(ctx)

	logging.FromContext(ctx).Debug("session started", "folio", sess.Folio.State().Current)
	return sess
}

// Get returns a live session and marks it as used.
func (st *SessionStore) Get(id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrSessionNotFound
	}

	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()

	now := st.now()
	if !ok || sess.idleSince(now) > st.opts.TTL {
		return nil, ErrSessionNotFound
	}
	sess.touch(now)
	return sess, nil
}

// Len returns the number of stored sessions, expired ones included.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than the TTL and returns how many.
func (st *SessionStore) Sweep() int {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	removed := 0
	for id, sess := range st.sessions {
		if sess.idleSince(now) > st.opts.TTL {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (st *SessionStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				slog.Debug("expired sessions removed", "count", n, "remaining", st.Len())
			}
		}
	}
}
