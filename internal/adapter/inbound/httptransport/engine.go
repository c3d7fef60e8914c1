package httptransport

import (
	"context"

	"github.com/turbomcp/turbomcp/internal/domain/session"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Engine is the port this transport dispatches decoded envelopes into.
// The server runtime (registry + dispatcher) implements it; the
// transport itself knows nothing about tools, resources or prompts.
//
// HandleEnvelope processes exactly one envelope for an active session:
//   - a Request returns a non-nil response Envelope;
//   - a Notification returns (nil, nil);
//   - a Response (the client answering a server-initiated request, e.g.
//     sampling/createMessage) is routed to the correlation dispatcher and
//     also returns (nil, nil).
type Engine interface {
	HandleEnvelope(ctx context.Context, sess *session.Session, env *mcp.Envelope) (*mcp.Envelope, error)
}
