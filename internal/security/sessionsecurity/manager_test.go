package sessionsecurity

import (
	"testing"
	"time"

	"github.com/turbomcp/turbomcp/internal/adapter/outbound/memory"
	"github.com/turbomcp/turbomcp/internal/domain/session"
)

func newTestSessionManager(t *testing.T) *session.Manager {
	t.Helper()
	store := memory.NewSessionStore()
	return session.NewManager(store, session.Config{})
}

func TestCheckNewSessionAllowsUnderLimit(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{MaxSessionsPerAddr: 2})

	if _, err := sm.Create(t.Context(), "10.0.0.1"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.CheckNewSession(t.Context(), "10.0.0.1"); err != nil {
		t.Fatalf("CheckNewSession: %v", err)
	}
}

func TestCheckNewSessionRejectsOverLimit(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{MaxSessionsPerAddr: 1})

	if _, err := sm.Create(t.Context(), "10.0.0.2"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.CheckNewSession(t.Context(), "10.0.0.2"); err != ErrTooManySessions {
		t.Fatalf("CheckNewSession = %v, want ErrTooManySessions", err)
	}
}

func TestCheckNewSessionDisabledWhenZero(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{})

	for i := 0; i < 5; i++ {
		if _, err := sm.Create(t.Context(), "10.0.0.3"); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if err := m.CheckNewSession(t.Context(), "10.0.0.3"); err != nil {
		t.Fatalf("CheckNewSession = %v, want nil with MaxSessionsPerAddr disabled", err)
	}
}

func TestCheckRequestRejectsRemoteAddrChangeWhenBound(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{BindRemoteAddr: true})

	sess, err := sm.Create(t.Context(), "10.0.0.4")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := m.CheckRequest(t.Context(), sess, "10.0.0.4"); err != nil {
		t.Fatalf("CheckRequest same addr: %v", err)
	}
	if _, err := m.CheckRequest(t.Context(), sess, "10.0.0.99"); err != ErrRemoteAddrChange {
		t.Fatalf("CheckRequest different addr = %v, want ErrRemoteAddrChange", err)
	}
}

func TestCheckRequestAllowsAnyAddrWhenNotBound(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{BindRemoteAddr: false})

	sess, err := sm.Create(t.Context(), "10.0.0.5")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.CheckRequest(t.Context(), sess, "10.0.0.100"); err != nil {
		t.Fatalf("CheckRequest: %v", err)
	}
}

func TestCheckRequestRegeneratesIDAfterInterval(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{RegenerateInterval: 10 * time.Millisecond})

	sess, err := sm.Create(t.Context(), "10.0.0.6")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	originalID := sess.ID

	time.Sleep(20 * time.Millisecond)
	updated, err := m.CheckRequest(t.Context(), sess, "10.0.0.6")
	if err != nil {
		t.Fatalf("CheckRequest: %v", err)
	}
	if updated.ID == originalID {
		t.Fatal("expected session ID to be regenerated after interval elapsed")
	}

	if _, err := sm.Get(t.Context(), originalID); err == nil {
		t.Fatal("expected old session ID to no longer resolve")
	}
	if _, err := sm.Get(t.Context(), updated.ID); err != nil {
		t.Fatalf("Get on regenerated ID: %v", err)
	}
}

func TestCheckRequestDoesNotRegenerateBeforeInterval(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{RegenerateInterval: time.Hour})

	sess, err := sm.Create(t.Context(), "10.0.0.7")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	originalID := sess.ID

	updated, err := m.CheckRequest(t.Context(), sess, "10.0.0.7")
	if err != nil {
		t.Fatalf("CheckRequest: %v", err)
	}
	if updated.ID != originalID {
		t.Fatal("expected session ID to stay stable before interval elapses")
	}
}

func TestForgetRemovesTrackedSession(t *testing.T) {
	sm := newTestSessionManager(t)
	m := NewManager(sm, Config{RegenerateInterval: time.Hour})

	sess, err := sm.Create(t.Context(), "10.0.0.8")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.CheckRequest(t.Context(), sess, "10.0.0.8"); err != nil {
		t.Fatalf("CheckRequest: %v", err)
	}
	if m.TrackedSessionCount() != 1 {
		t.Fatalf("TrackedSessionCount = %d, want 1", m.TrackedSessionCount())
	}
	m.Forget(sess.ID)
	if m.TrackedSessionCount() != 0 {
		t.Fatalf("TrackedSessionCount after Forget = %d, want 0", m.TrackedSessionCount())
	}
}
