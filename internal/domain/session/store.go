package session

import (
	"context"
	"errors"
)

// Store provides session persistence. Defined in the domain package to
// avoid circular imports between adapters and the services that consume
// them (the teacher's SessionStore convention).
// Implementations: in-memory (default), SQLite-backed (persisted state
// across restarts).
type Store interface {
	// Create stores a new session. Returns ErrSessionExists if the ID
	// collides (should never happen given GenerateSessionID's entropy).
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by ID. Returns ErrSessionNotFound if no
	// session with that ID is stored; expiry is applied by Manager.Get,
	// not here.
	Get(ctx context.Context, id string) (*Session, error)

	// Update saves changes to an existing session.
	Update(ctx context.Context, sess *Session) error

	// Delete removes a session unconditionally.
	Delete(ctx context.Context, id string) error

	// CountByRemoteAddr returns the number of non-terminal sessions bound
	// to the given remote address, used by the session security manager
	// to enforce a max-sessions-per-IP limit.
	CountByRemoteAddr(ctx context.Context, remoteAddr string) (int, error)
}

var (
	// ErrSessionNotFound is returned when a session doesn't exist or has expired.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned by Create on an ID collision.
	ErrSessionExists = errors.New("session already exists")
	// ErrInvalidTransition is returned when a state change violates the
	// session lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid session state transition")
)
