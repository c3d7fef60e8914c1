// Package transport defines the connection abstraction every inbound
// adapter (stdio, TCP, Unix domain socket, Streamable HTTP, WebSocket)
// implements, so the server runtime can read and write MCP envelopes
// without knowing which wire carries them.
package transport

import (
	"context"
	"errors"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// State tracks a connection's position in its lifecycle. Every adapter
// reports through the same four states regardless of what the
// underlying wire actually looks like.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrClosed is returned by Conn methods once the connection has entered
// StateClosed.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a bidirectional channel for MCP envelopes. A single Conn may
// carry many requests and responses interleaved (it is not one-shot).
type Conn interface {
	// ReadEnvelope blocks for the next inbound message. Returns
	// ErrClosed (possibly wrapped) once the peer disconnects.
	ReadEnvelope(ctx context.Context) (*mcp.Envelope, error)
	// WriteEnvelope sends one message. Safe to call concurrently with
	// ReadEnvelope but implementations serialize concurrent writers
	// internally so callers need not hold an external lock.
	WriteEnvelope(ctx context.Context, env *mcp.Envelope) error
	// RemoteAddr identifies the peer, or "local" for peerless
	// transports (stdio), matching the teacher's convention of binding
	// such connections to a single shared rate-limit/session bucket.
	RemoteAddr() string
	// State reports the connection's current lifecycle state.
	State() State
	// Close tears down the connection, transitioning to StateClosed.
	// Idempotent.
	Close() error
}

// Listener accepts new Conns, for the transports that are inherently
// multi-connection (TCP, Unix domain sockets). Stdio has no Listener:
// the process itself is the one connection.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}
