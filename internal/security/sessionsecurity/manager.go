// Package sessionsecurity enforces the session-hardening policy layered
// on top of internal/domain/session: a cap on concurrent sessions per
// remote address, optional IP binding (a session created from one
// address is rejected if later presented from another), and periodic
// session-id regeneration so a long-lived session doesn't carry the
// same ID for its entire lifetime. It holds no state of its own beyond
// a per-connection cache of "last regenerated at", in the same
// cache-with-TTL shape as the teacher's AuthInterceptor session cache.
package sessionsecurity

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/session"
)

// Errors returned by Manager's checks.
var (
	ErrTooManySessions  = errors.New("sessionsecurity: too many sessions for remote address")
	ErrRemoteAddrChange = errors.New("sessionsecurity: session presented from a different remote address")
)

// Config controls the policy a Manager enforces.
type Config struct {
	// MaxSessionsPerAddr caps concurrent non-terminal sessions from one
	// remote address. Zero disables the check.
	MaxSessionsPerAddr int
	// BindRemoteAddr rejects a session when its current RemoteAddr
	// differs from the one recorded at creation.
	BindRemoteAddr bool
	// RegenerateInterval, when non-zero, issues a new session ID (via
	// manager.Regenerate) once this long has elapsed since the session
	// was created or last regenerated, limiting the exposure window of
	// any single session identifier.
	RegenerateInterval time.Duration
}

// Manager enforces Config against a session.Manager.
type Manager struct {
	sessions *session.Manager
	cfg      Config

	mu            sync.Mutex
	lastRegenDone map[string]time.Time
}

// NewManager builds a Manager wrapping sessions.
func NewManager(sessions *session.Manager, cfg Config) *Manager {
	return &Manager{
		sessions:      sessions,
		cfg:           cfg,
		lastRegenDone: make(map[string]time.Time),
	}
}

// CheckNewSession enforces MaxSessionsPerAddr before a new session is
// created for remoteAddr. Callers should invoke this immediately before
// session.Manager.Create.
func (m *Manager) CheckNewSession(ctx context.Context, remoteAddr string) error {
	if m.cfg.MaxSessionsPerAddr <= 0 || remoteAddr == "" {
		return nil
	}
	count, err := m.sessions.CountByRemoteAddr(ctx, remoteAddr)
	if err != nil {
		return err
	}
	if count >= m.cfg.MaxSessionsPerAddr {
		return ErrTooManySessions
	}
	return nil
}

// CheckRequest enforces IP binding for an inbound request against sess,
// and regenerates sess's ID if RegenerateInterval has elapsed. Returns
// the (possibly regenerated) session to use going forward.
func (m *Manager) CheckRequest(ctx context.Context, sess *session.Session, remoteAddr string) (*session.Session, error) {
	if m.cfg.BindRemoteAddr && remoteAddr != "" && sess.RemoteAddr != "" && sess.RemoteAddr != remoteAddr {
		return nil, ErrRemoteAddrChange
	}

	if m.cfg.RegenerateInterval <= 0 {
		return sess, nil
	}

	m.mu.Lock()
	last, ok := m.lastRegenDone[sess.ID]
	if !ok {
		last = sess.CreatedAt
		m.lastRegenDone[sess.ID] = last
	}
	due := time.Since(last) >= m.cfg.RegenerateInterval
	m.mu.Unlock()

	if !due {
		return sess, nil
	}
	return m.regenerate(ctx, sess)
}

// regenerate issues sess a new ID, preserving all other state, and
// records the regeneration time for the new ID.
func (m *Manager) regenerate(ctx context.Context, sess *session.Session) (*session.Session, error) {
	oldID := sess.ID
	regenerated, err := m.sessions.Regenerate(ctx, sess)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	delete(m.lastRegenDone, oldID)
	m.lastRegenDone[regenerated.ID] = time.Now()
	m.mu.Unlock()

	return regenerated, nil
}

// Forget drops any cached regeneration bookkeeping for a session,
// called when a session terminates to avoid unbounded cache growth.
func (m *Manager) Forget(sessionID string) {
	m.mu.Lock()
	delete(m.lastRegenDone, sessionID)
	m.mu.Unlock()
}

// TrackedSessionCount returns how many sessions have regeneration
// bookkeeping, for tests and diagnostics.
func (m *Manager) TrackedSessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lastRegenDone)
}
