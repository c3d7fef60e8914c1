// Package sqlitestore provides a SQLite-backed session.Store so session
// state survives a server restart, unlike the in-memory default.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
	"github.com/turbomcp/turbomcp/internal/domain/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	state            INTEGER NOT NULL,
	protocol_version TEXT NOT NULL DEFAULT '',
	client_name      TEXT NOT NULL DEFAULT '',
	client_version   TEXT NOT NULL DEFAULT '',
	identity_id      TEXT NOT NULL DEFAULT '',
	roles            TEXT NOT NULL DEFAULT '',
	remote_addr      TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL,
	expires_at       INTEGER NOT NULL,
	last_access      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_remote_addr ON sessions(remote_addr);
`

// SessionStore implements session.Store on top of a SQLite database
// opened via modernc.org/sqlite (pure Go, no cgo).
type SessionStore struct {
	db *sql.DB
}

// Open creates or attaches to a SQLite database at path and ensures the
// sessions table exists. path may be ":memory:" for an ephemeral store
// with the same durability semantics as the memory backend, or a file
// path for state that survives a restart.
func Open(path string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite session store: %w", err)
	}
	// SQLite allows only one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent access from multiple goroutines.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite session schema: %w", err)
	}
	return &SessionStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) Create(ctx context.Context, sess *session.Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, state, protocol_version, client_name, client_version,
			identity_id, roles, remote_addr, created_at, expires_at, last_access)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, int(sess.State), sess.ProtocolVersion, sess.ClientName, sess.ClientVersion,
		sess.IdentityID, encodeRoles(sess.Roles), sess.RemoteAddr,
		sess.CreatedAt.Unix(), sess.ExpiresAt.Unix(), sess.LastAccess.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return session.ErrSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, state, protocol_version, client_name, client_version,
			identity_id, roles, remote_addr, created_at, expires_at, last_access
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, session.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	return sess, nil
}

func (s *SessionStore) Update(ctx context.Context, sess *session.Session) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET state = ?, protocol_version = ?, client_name = ?, client_version = ?,
			identity_id = ?, roles = ?, remote_addr = ?, expires_at = ?, last_access = ?
		WHERE id = ?`,
		int(sess.State), sess.ProtocolVersion, sess.ClientName, sess.ClientVersion,
		sess.IdentityID, encodeRoles(sess.Roles), sess.RemoteAddr,
		sess.ExpiresAt.Unix(), sess.LastAccess.Unix(), sess.ID,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session rows affected: %w", err)
	}
	if n == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) CountByRemoteAddr(ctx context.Context, remoteAddr string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE remote_addr = ? AND state NOT IN (?, ?)`,
		remoteAddr, int(session.StateTerminated), int(session.StateExpired),
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("count sessions by remote addr: %w", err)
	}
	return n, nil
}

// Sweep deletes every session that is terminal or past its deadline,
// mirroring the memory backend's periodic cleanup goroutine.
func (s *SessionStore) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sessions WHERE state IN (?, ?) OR expires_at < ?`,
		int(session.StateTerminated), int(session.StateExpired), time.Now().UTC().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("sweep expired sessions: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var (
		sess                        session.Session
		state                       int
		rolesCSV                    string
		createdAt, expiresAt, lastA int64
	)
	if err := row.Scan(
		&sess.ID, &state, &sess.ProtocolVersion, &sess.ClientName, &sess.ClientVersion,
		&sess.IdentityID, &rolesCSV, &sess.RemoteAddr, &createdAt, &expiresAt, &lastA,
	); err != nil {
		return nil, err
	}
	sess.State = session.State(state)
	sess.Roles = decodeRoles(rolesCSV)
	sess.CreatedAt = time.Unix(createdAt, 0).UTC()
	sess.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	sess.LastAccess = time.Unix(lastA, 0).UTC()
	return &sess, nil
}

func encodeRoles(roles []auth.Role) string {
	out := ""
	for i, r := range roles {
		if i > 0 {
			out += ","
		}
		out += string(r)
	}
	return out
}

func decodeRoles(csv string) []auth.Role {
	if csv == "" {
		return nil
	}
	var roles []auth.Role
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			roles = append(roles, auth.Role(csv[start:i]))
			start = i + 1
		}
	}
	return roles
}

func isUniqueViolation(err error) bool {
	return err != nil && sqliteErrContains(err, "UNIQUE constraint failed")
}

func sqliteErrContains(err error, substr string) bool {
	msg := err.Error()
	for i := 0; i+len(substr) <= len(msg); i++ {
		if msg[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// Compile-time interface verification.
var _ session.Store = (*SessionStore)(nil)
