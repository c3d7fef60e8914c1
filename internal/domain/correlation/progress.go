package correlation

import (
	"sync"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// ProgressSink receives progress notifications for one request.
type ProgressSink func(env *mcp.Envelope)

// ProgressRouter delivers notifications/progress messages to the
// handler registered for their progress token. Connections process
// inbound messages on a single reader goroutine, so per-token ordering
// falls out of that for free: the router only needs to route, not
// reorder or buffer.
type ProgressRouter struct {
	mu    sync.Mutex
	sinks map[string]ProgressSink
}

// NewProgressRouter creates an empty ProgressRouter.
func NewProgressRouter() *ProgressRouter {
	return &ProgressRouter{sinks: make(map[string]ProgressSink)}
}

// Register associates token with sink until Unregister is called. A
// second Register for the same token replaces the sink, matching the
// one-subscriber-per-token model the bidirectional API (C10) uses.
func (r *ProgressRouter) Register(token mcp.ProgressToken, sink ProgressSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[idKey(token)] = sink
}

// Unregister removes token's sink, typically once its request completes.
func (r *ProgressRouter) Unregister(token mcp.ProgressToken) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, idKey(token))
}

// Route dispatches env (expected to be a notifications/progress
// envelope) to the sink registered for its progress token. Returns
// false if no sink is registered (the progress token is unknown or its
// request already completed); callers should drop the notification.
func (r *ProgressRouter) Route(token mcp.ProgressToken, env *mcp.Envelope) bool {
	r.mu.Lock()
	sink, ok := r.sinks[idKey(token)]
	r.mu.Unlock()

	if !ok {
		return false
	}
	sink(env)
	return true
}
