// Package session manages MCP session lifecycle: creation, the
// Pending/Active/Terminated/Expired state machine, idle and max-lifetime
// expiration, and the bounded per-session event log that backs SSE
// resumption (Last-Event-ID replay) on the Streamable HTTP transport.
package session

import (
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/auth"
)

// State is a session's position in its lifecycle state machine.
//
//	Pending -> Active -> Terminated
//	Pending -> Active -> Expired
//	Pending -> Expired   (client never completed initialize in time)
//
// Terminated and Expired are both absorbing: once in either state a
// session never transitions again and must be recreated.
type State int

const (
	// StatePending is assigned on session creation, before the client's
	// "initialize" request has been accepted.
	StatePending State = iota
	// StateActive is assigned once initialize succeeds; normal operation.
	StateActive
	// StateTerminated means the client (DELETE /session) or server ended
	// the session deliberately.
	StateTerminated
	// StateExpired means the session's idle timeout or max lifetime
	// elapsed without being refreshed.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateTerminated:
		return "terminated"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is an absorbing state.
func (s State) IsTerminal() bool {
	return s == StateTerminated || s == StateExpired
}

// Session tracks one client connection's negotiated state across
// requests, independent of which transport (stdio, HTTP, WebSocket)
// carries them.
type Session struct {
	// ID is a cryptographically random identifier (see GenerateSessionID):
	// >=128 bits of entropy, <=256 characters, opaque to clients.
	ID string
	// State is the current lifecycle state.
	State State
	// ProtocolVersion is the version negotiated during initialize.
	ProtocolVersion string
	// ClientName/ClientVersion identify the peer, from InitializeParams.ClientInfo.
	ClientName    string
	ClientVersion string

	// IdentityID/Roles cache the authenticated identity for this session,
	// set once auth completes; empty for unauthenticated transports (stdio).
	IdentityID string
	Roles      []auth.Role

	// TenantID, if set, scopes this session's metrics to a per-tenant
	// Counters record (internal/observability) in addition to the
	// global ones. Empty for deployments that don't multi-tenant.
	TenantID string

	// RemoteAddr is the peer address at session creation, used by the
	// session security manager to enforce IP binding.
	RemoteAddr string

	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastAccess time.Time

	// events is the bounded replay buffer for SSE resumption. It is not
	// copied by value; stores must preserve it across Update.
	events *EventLog
}

// IsExpired reports whether the session has exceeded its current
// ExpiresAt deadline. Callers still check State separately: IsExpired
// becoming true does not retroactively change State until Touch or the
// store's cleanup sweep observes it (mirrors the teacher's
// check-without-mutate Get semantics).
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// Events returns the session's event log, creating one on first use.
func (s *Session) Events() *EventLog {
	if s.events == nil {
		s.events = NewEventLog(DefaultEventLogSize)
	}
	return s.events
}
