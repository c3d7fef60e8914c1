package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
)

// DefaultIdleTimeout is how long a session may go without activity
// before it expires.
const DefaultIdleTimeout = 30 * time.Minute

// DefaultMaxLifetime bounds a session's total lifetime regardless of
// activity, limiting the blast radius of a leaked session ID.
const DefaultMaxLifetime = 24 * time.Hour

// Config holds session manager configuration.
type Config struct {
	// IdleTimeout is reset on every Touch. Default: 30 minutes.
	IdleTimeout time.Duration
	// MaxLifetime is fixed at Create and never extended. Default: 24 hours.
	MaxLifetime time.Duration
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = DefaultMaxLifetime
	}
	return c
}

// Manager drives the session lifecycle state machine on top of a Store.
type Manager struct {
	store  Store
	config Config
}

// NewManager creates a Manager with the given store and config.
func NewManager(store Store, cfg Config) *Manager {
	return &Manager{store: store, config: cfg.withDefaults()}
}

// Create starts a new session in StatePending. RemoteAddr is recorded
// for later IP-binding checks; it may be empty for transports without a
// network peer (stdio).
func (m *Manager) Create(ctx context.Context, remoteAddr string) (*Session, error) {
	id, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	maxExpiry := now.Add(m.config.MaxLifetime)
	idleExpiry := now.Add(m.config.IdleTimeout)
	expiresAt := idleExpiry
	if maxExpiry.Before(expiresAt) {
		expiresAt = maxExpiry
	}

	sess := &Session{
		ID:         id,
		State:      StatePending,
		RemoteAddr: remoteAddr,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
		LastAccess: now,
	}

	if err := m.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get retrieves a session. A terminal session is reported as
// ErrSessionNotFound; so is one whose deadline has passed, which is
// also lazily transitioned to Expired in the store.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State.IsTerminal() {
		return nil, ErrSessionNotFound
	}
	if sess.IsExpired() {
		sess.State = StateExpired
		_ = m.store.Update(ctx, sess)
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Activate transitions a session from Pending to Active, as happens
// once its initialize request is accepted. Records the negotiated
// protocol version and client info.
func (m *Manager) Activate(ctx context.Context, id, protocolVersion, clientName, clientVersion string) (*Session, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.State != StatePending {
		return nil, ErrInvalidTransition
	}
	sess.State = StateActive
	sess.ProtocolVersion = protocolVersion
	sess.ClientName = clientName
	sess.ClientVersion = clientVersion
	sess.touch(m.config)

	if err := m.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("activate session: %w", err)
	}
	return sess, nil
}

// BindIdentity attaches an authenticated identity to an already-created
// session, used when auth completes after the transport-level session
// was established (e.g. API key validated mid-handshake).
func (m *Manager) BindIdentity(ctx context.Context, id string, identity *auth.Identity) error {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	sess.IdentityID = identity.ID
	sess.Roles = append([]auth.Role(nil), identity.Roles...)
	return m.store.Update(ctx, sess)
}

// Touch extends the session's idle deadline (never past MaxLifetime)
// and records LastAccess, as must happen on every inbound request.
func (m *Manager) Touch(ctx context.Context, id string) (*Session, error) {
	sess, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sess.touch(m.config)
	if err := m.store.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	return sess, nil
}

func (s *Session) touch(cfg Config) {
	now := time.Now().UTC()
	s.LastAccess = now
	idleExpiry := now.Add(cfg.IdleTimeout)
	maxExpiry := s.CreatedAt.Add(cfg.MaxLifetime)
	if maxExpiry.Before(idleExpiry) {
		s.ExpiresAt = maxExpiry
	} else {
		s.ExpiresAt = idleExpiry
	}
}

// Terminate ends a session deliberately (client DELETE /session, or
// server-initiated shutdown), transitioning it to StateTerminated.
func (m *Manager) Terminate(ctx context.Context, id string) error {
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.State.IsTerminal() {
		return nil
	}
	sess.State = StateTerminated
	return m.store.Update(ctx, sess)
}

// CountByRemoteAddr delegates to the store, for the session security
// manager's per-IP session cap.
func (m *Manager) CountByRemoteAddr(ctx context.Context, remoteAddr string) (int, error) {
	return m.store.CountByRemoteAddr(ctx, remoteAddr)
}

// Regenerate reissues sess under a new ID, preserving all other state,
// for the session security manager's periodic ID-rotation policy. The
// old ID is deleted once the new one is persisted.
func (m *Manager) Regenerate(ctx context.Context, sess *Session) (*Session, error) {
	newID, err := GenerateSessionID()
	if err != nil {
		return nil, err
	}

	oldID := sess.ID
	sess.ID = newID
	if err := m.store.Create(ctx, sess); err != nil {
		sess.ID = oldID
		return nil, fmt.Errorf("regenerate session: %w", err)
	}
	_ = m.store.Delete(ctx, oldID)
	return sess, nil
}

// GenerateSessionID creates a cryptographically random session ID: 32
// bytes (256 bits) of entropy from crypto/rand, hex-encoded to 64
// characters, comfortably inside spec.md's >=128-bit / <=256-char bounds.
func GenerateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}
