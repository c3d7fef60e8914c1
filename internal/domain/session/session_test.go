package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
)

// mockStore is a simple in-memory mock for testing the Manager in
// isolation from any real Store implementation.
type mockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newMockStore() *mockStore {
	return &mockStore{sessions: make(map[string]*Session)}
}

func (m *mockStore) Create(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *mockStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *sess
	cp.Roles = append([]auth.Role(nil), sess.Roles...)
	return &cp, nil
}

func (m *mockStore) Update(ctx context.Context, sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[sess.ID]; !ok {
		return ErrSessionNotFound
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *mockStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *mockStore) CountByRemoteAddr(ctx context.Context, remoteAddr string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sess := range m.sessions {
		if sess.RemoteAddr == remoteAddr && !sess.State.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func TestGenerateSessionID(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateSessionID()
		if err != nil {
			t.Fatalf("GenerateSessionID() error = %v", err)
		}
		if ids[id] {
			t.Errorf("GenerateSessionID() generated duplicate ID: %s", id)
		}
		ids[id] = true
		if len(id) != 64 {
			t.Errorf("GenerateSessionID() len = %d, want 64", len(id))
		}
		for _, c := range id {
			if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
				t.Errorf("GenerateSessionID() contains non-hex character: %c", c)
			}
		}
	}
}

func TestManagerCreateStartsPending(t *testing.T) {
	mgr := NewManager(newMockStore(), Config{})
	sess, err := mgr.Create(context.Background(), "203.0.113.5")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.State != StatePending {
		t.Errorf("State = %v, want Pending", sess.State)
	}
	if sess.RemoteAddr != "203.0.113.5" {
		t.Errorf("RemoteAddr = %q, want 203.0.113.5", sess.RemoteAddr)
	}
	if sess.CreatedAt.IsZero() || sess.ExpiresAt.IsZero() || sess.LastAccess.IsZero() {
		t.Error("Create() left a zero timestamp")
	}
}

func TestManagerActivateRequiresPending(t *testing.T) {
	mgr := NewManager(newMockStore(), Config{})
	ctx := context.Background()
	sess, _ := mgr.Create(ctx, "")

	activated, err := mgr.Activate(ctx, sess.ID, "2025-06-18", "test-client", "1.0.0")
	if err != nil {
		t.Fatalf("Activate() error = %v", err)
	}
	if activated.State != StateActive {
		t.Errorf("State = %v, want Active", activated.State)
	}
	if activated.ProtocolVersion != "2025-06-18" {
		t.Errorf("ProtocolVersion = %q", activated.ProtocolVersion)
	}

	if _, err := mgr.Activate(ctx, sess.ID, "2025-06-18", "x", "1"); err != ErrInvalidTransition {
		t.Errorf("second Activate() error = %v, want ErrInvalidTransition", err)
	}
}

func TestManagerGetExpiresLazily(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store, Config{IdleTimeout: 30 * time.Minute})
	ctx := context.Background()

	sess := &Session{
		ID:         "expired-session",
		State:      StateActive,
		CreatedAt:  time.Now().Add(-2 * time.Hour),
		ExpiresAt:  time.Now().Add(-1 * time.Hour),
		LastAccess: time.Now().Add(-2 * time.Hour),
	}
	_ = store.Create(ctx, sess)

	if _, err := mgr.Get(ctx, sess.ID); err != ErrSessionNotFound {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}

	stored, _ := store.Get(ctx, sess.ID)
	if stored.State != StateExpired {
		t.Errorf("stored State = %v, want Expired after lazy expiry", stored.State)
	}
}

func TestManagerGetNonexistent(t *testing.T) {
	mgr := NewManager(newMockStore(), Config{})
	if _, err := mgr.Get(context.Background(), "nonexistent"); err != ErrSessionNotFound {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestManagerTouchExtendsExpiry(t *testing.T) {
	mgr := NewManager(newMockStore(), Config{IdleTimeout: 30 * time.Minute, MaxLifetime: 24 * time.Hour})
	ctx := context.Background()
	sess, _ := mgr.Create(ctx, "")
	original := sess.ExpiresAt

	time.Sleep(10 * time.Millisecond)
	touched, err := mgr.Touch(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	if !touched.ExpiresAt.After(original) {
		t.Errorf("ExpiresAt = %v, want after %v", touched.ExpiresAt, original)
	}
	if !touched.LastAccess.After(sess.LastAccess) {
		t.Errorf("LastAccess not advanced")
	}
}

func TestManagerTouchNeverExceedsMaxLifetime(t *testing.T) {
	mgr := NewManager(newMockStore(), Config{IdleTimeout: time.Hour, MaxLifetime: 50 * time.Millisecond})
	ctx := context.Background()
	sess, _ := mgr.Create(ctx, "")

	time.Sleep(20 * time.Millisecond)
	touched, err := mgr.Touch(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	maxExpiry := sess.CreatedAt.Add(50 * time.Millisecond)
	if touched.ExpiresAt.After(maxExpiry.Add(time.Millisecond)) {
		t.Errorf("ExpiresAt = %v, must not exceed max lifetime deadline %v", touched.ExpiresAt, maxExpiry)
	}
}

func TestManagerTerminateIsAbsorbing(t *testing.T) {
	mgr := NewManager(newMockStore(), Config{})
	ctx := context.Background()
	sess, _ := mgr.Create(ctx, "")

	if err := mgr.Terminate(ctx, sess.ID); err != nil {
		t.Fatalf("Terminate() error = %v", err)
	}
	if _, err := mgr.Get(ctx, sess.ID); err != ErrSessionNotFound {
		t.Errorf("Get() after Terminate() error = %v, want ErrSessionNotFound", err)
	}
	// Terminating again is a no-op, not an error.
	if err := mgr.Terminate(ctx, sess.ID); err != nil {
		t.Errorf("second Terminate() error = %v, want nil", err)
	}
}

func TestManagerBindIdentity(t *testing.T) {
	mgr := NewManager(newMockStore(), Config{})
	ctx := context.Background()
	sess, _ := mgr.Create(ctx, "")

	identity := &auth.Identity{ID: "user-1", Name: "Ada", Roles: []auth.Role{auth.RoleUser}}
	if err := mgr.BindIdentity(ctx, sess.ID, identity); err != nil {
		t.Fatalf("BindIdentity() error = %v", err)
	}

	bound, err := mgr.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if bound.IdentityID != "user-1" || len(bound.Roles) != 1 || bound.Roles[0] != auth.RoleUser {
		t.Errorf("identity not bound: %+v", bound)
	}
}

func TestSessionIsExpired(t *testing.T) {
	cases := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"future deadline", time.Now().Add(time.Hour), false},
		{"past deadline", time.Now().Add(-time.Hour), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &Session{ExpiresAt: tc.expiresAt}
			if got := sess.IsExpired(); got != tc.want {
				t.Errorf("IsExpired() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStateIsTerminal(t *testing.T) {
	cases := []struct {
		state State
		want  bool
	}{
		{StatePending, false},
		{StateActive, false},
		{StateTerminated, true},
		{StateExpired, true},
	}
	for _, tc := range cases {
		if got := tc.state.IsTerminal(); got != tc.want {
			t.Errorf("%v.IsTerminal() = %v, want %v", tc.state, got, tc.want)
		}
	}
}
