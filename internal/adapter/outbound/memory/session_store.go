// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
	"github.com/turbomcp/turbomcp/internal/domain/session"
)

// DefaultCleanupInterval is how often the background sweep scans for
// expired or terminated sessions to evict.
const DefaultCleanupInterval = 1 * time.Minute

// SessionStore implements session.Store over an in-memory map.
// Thread-safe for concurrent access. The default backend; durability
// across restarts requires sqlitestore.SessionStore instead.
type SessionStore struct {
	sessions        map[string]*session.Session
	mu              sync.RWMutex
	stopChan        chan struct{}
	wg              sync.WaitGroup
	cleanupInterval time.Duration
	once            sync.Once
}

// NewSessionStore creates an in-memory session store with the default
// cleanup interval.
func NewSessionStore() *SessionStore {
	return NewSessionStoreWithConfig(DefaultCleanupInterval)
}

// NewSessionStoreWithConfig creates an in-memory session store with a
// custom cleanup interval.
func NewSessionStoreWithConfig(cleanupInterval time.Duration) *SessionStore {
	return &SessionStore{
		sessions:        make(map[string]*session.Session),
		stopChan:        make(chan struct{}),
		cleanupInterval: cleanupInterval,
	}
}

// StartCleanup starts the background goroutine that periodically evicts
// expired and terminated sessions. Call Stop to shut it down gracefully.
func (s *SessionStore) StartCleanup(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

func (s *SessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	cleaned := 0
	for id, sess := range s.sessions {
		if sess.State.IsTerminal() || sess.IsExpired() {
			delete(s.sessions, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		slog.Debug("session cleanup swept expired sessions", "count", cleaned)
	}
}

// Stop stops the background cleanup goroutine and waits for it to exit.
// Safe to call multiple times.
func (s *SessionStore) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return session.ErrSessionExists
	}
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// Get retrieves a session by ID. Expired sessions are not deleted here;
// the background sweep handles eviction so reads stay lock-cheap.
func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return copySession(sess), nil
}

func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sess.ID]; !ok {
		return session.ErrSessionNotFound
	}
	s.sessions[sess.ID] = copySession(sess)
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *SessionStore) CountByRemoteAddr(ctx context.Context, remoteAddr string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sess := range s.sessions {
		if sess.RemoteAddr == remoteAddr && !sess.State.IsTerminal() {
			n++
		}
	}
	return n, nil
}

// Size returns the number of sessions currently stored. Useful for
// testing cleanup behavior.
func (s *SessionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// copySession creates a shallow-safe copy of a session, deep-copying the
// Roles slice so callers cannot mutate the stored copy through the one
// they were handed.
func copySession(sess *session.Session) *session.Session {
	cp := *sess
	cp.Roles = make([]auth.Role, len(sess.Roles))
	copy(cp.Roles, sess.Roles)
	return &cp
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
