package sqlitestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
	"github.com/turbomcp/turbomcp/internal/domain/session"
)

func openTestStore(t *testing.T) *SessionStore {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteSessionStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := &session.Session{
		ID:              "sess-1",
		State:           session.StateActive,
		ProtocolVersion: "2025-06-18",
		ClientName:      "conformance-client",
		ClientVersion:   "1.0.0",
		IdentityID:      "user-1",
		Roles:           []auth.Role{auth.RoleUser, auth.RoleAdmin},
		RemoteAddr:      "203.0.113.1",
		CreatedAt:       time.Now().UTC().Truncate(time.Second),
		ExpiresAt:       time.Now().UTC().Add(30 * time.Minute).Truncate(time.Second),
		LastAccess:      time.Now().UTC().Truncate(time.Second),
	}

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := store.Get(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != session.StateActive {
		t.Errorf("State = %v, want Active", got.State)
	}
	if got.ProtocolVersion != "2025-06-18" {
		t.Errorf("ProtocolVersion = %q", got.ProtocolVersion)
	}
	if len(got.Roles) != 2 || got.Roles[0] != auth.RoleUser || got.Roles[1] != auth.RoleAdmin {
		t.Errorf("Roles = %v, want [user admin]", got.Roles)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, sess.CreatedAt)
	}
}

func TestSQLiteSessionStoreCreateCollision(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	sess := &session.Session{ID: "dup", ExpiresAt: time.Now().UTC().Add(time.Hour)}

	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Create(ctx, sess); !errors.Is(err, session.ErrSessionExists) {
		t.Errorf("second Create() error = %v, want ErrSessionExists", err)
	}
}

func TestSQLiteSessionStoreGetNonExistent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	if _, err := store.Get(ctx, "nonexistent"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteSessionStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := &session.Session{ID: "sess-update", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	sess.State = session.StateTerminated
	if err := store.Update(ctx, sess); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, err := store.Get(ctx, "sess-update")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.State != session.StateTerminated {
		t.Errorf("State = %v, want Terminated", got.State)
	}
}

func TestSQLiteSessionStoreUpdateNonExistent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := &session.Session{ID: "nonexistent", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Update(ctx, sess); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Update() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteSessionStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := &session.Session{ID: "sess-delete", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Delete(ctx, "sess-delete"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := store.Get(ctx, "sess-delete"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrSessionNotFound", err)
	}
}

func TestSQLiteSessionStoreCountByRemoteAddr(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 3; i++ {
		sess := &session.Session{
			ID:         "sess-ip-" + string(rune('a'+i)),
			RemoteAddr: "198.51.100.7",
			ExpiresAt:  time.Now().UTC().Add(time.Hour),
		}
		if err := store.Create(ctx, sess); err != nil {
			t.Fatalf("Create() error: %v", err)
		}
	}
	expired := &session.Session{
		ID:         "sess-ip-expired",
		RemoteAddr: "198.51.100.7",
		State:      session.StateExpired,
		ExpiresAt:  time.Now().UTC().Add(-time.Hour),
	}
	if err := store.Create(ctx, expired); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	n, err := store.CountByRemoteAddr(ctx, "198.51.100.7")
	if err != nil {
		t.Fatalf("CountByRemoteAddr() error: %v", err)
	}
	if n != 3 {
		t.Errorf("CountByRemoteAddr() = %d, want 3", n)
	}
}

func TestSQLiteSessionStoreSweep(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	live := &session.Session{ID: "sess-live", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	stale := &session.Session{ID: "sess-stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)}
	if err := store.Create(ctx, live); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if err := store.Create(ctx, stale); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	n, err := store.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep() removed %d rows, want 1", n)
	}
	if _, err := store.Get(ctx, "sess-live"); err != nil {
		t.Errorf("live session should survive sweep: %v", err)
	}
	if _, err := store.Get(ctx, "sess-stale"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("stale session should be gone after sweep, got %v", err)
	}
}

func TestSQLiteSessionStoreRoundTripsEmptyRoles(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	sess := &session.Session{ID: "sess-no-roles", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	got, err := store.Get(ctx, "sess-no-roles")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if len(got.Roles) != 0 {
		t.Errorf("Roles = %v, want empty", got.Roles)
	}
}
