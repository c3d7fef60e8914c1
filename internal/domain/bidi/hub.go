// Package bidi implements the server-to-client facade (C10): typed
// sampling/createMessage, elicitation/create, and roots/list calls a
// tool or resource handler can issue against the session that invoked
// it. It has no teacher equivalent — the teacher is a passthrough proxy
// and never originates requests of its own — so it is built directly
// against the correlation dispatcher (C4) the rest of the runtime
// already uses for client-originated requests in the other direction.
package bidi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/turbomcp/turbomcp/internal/domain/correlation"
	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// DefaultTimeout bounds how long a server-to-client call waits for the
// client's reply absent a more specific deadline, matching spec.md's
// default 30s per-request timeout.
const DefaultTimeout = 30 * time.Second

// Sender delivers an envelope to the client side of sessionID's active
// transport. httptransport.Transport.Push satisfies this directly; a
// WebSocket-backed implementation looks up the live Conn for sessionID
// and calls its WriteEnvelope.
type Sender interface {
	Push(ctx context.Context, sessionID string, env *mcp.Envelope) error
}

// Hub routes server-initiated requests to sessions and resolves their
// eventual replies. One Hub serves every session on a transport; each
// session gets its own correlation.Dispatcher so that cancelling or
// terminating one session's calls never touches another's.
type Hub struct {
	sender Sender

	mu          sync.Mutex
	dispatchers map[string]*correlation.Dispatcher
}

// NewHub builds a Hub that delivers requests through sender.
func NewHub(sender Sender) *Hub {
	return &Hub{sender: sender, dispatchers: make(map[string]*correlation.Dispatcher)}
}

func (h *Hub) dispatcherFor(sessionID string) *correlation.Dispatcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, ok := h.dispatchers[sessionID]
	if !ok {
		d = correlation.New()
		h.dispatchers[sessionID] = d
	}
	return d
}

// Forget releases sessionID's dispatcher, completing any outstanding
// calls with a transport-closed error. Call when a session terminates.
func (h *Hub) Forget(sessionID string) {
	h.mu.Lock()
	d, ok := h.dispatchers[sessionID]
	delete(h.dispatchers, sessionID)
	h.mu.Unlock()
	if ok {
		d.Close()
	}
}

// Resolve delivers an incoming Response envelope to whichever call on
// sessionID is awaiting it. Returns false if nothing was waiting.
// Runtime calls this for every envelope where IsResponse() is true.
func (h *Hub) Resolve(sessionID string, env *mcp.Envelope) bool {
	h.mu.Lock()
	d, ok := h.dispatchers[sessionID]
	h.mu.Unlock()
	if !ok {
		return false
	}
	return d.Resolve(env)
}

// Notify pushes a one-way notification to sessionID's client. Unlike
// call, it does not register a waiter or expect a reply — used for
// server-initiated notifications like notifications/resources/updated
// that have no response to correlate.
func (h *Hub) Notify(ctx context.Context, sessionID, method string, params any) error {
	env, err := mcp.NewNotification(method, params)
	if err != nil {
		return err
	}
	return h.sender.Push(ctx, sessionID, env)
}

// call is the shared request/await/decode path every typed method below
// uses: allocate an id, send the request, wait for the matching
// response under timeout or ctx cancellation, decode the result.
func (h *Hub) call(ctx context.Context, sessionID, method string, params any, timeout time.Duration, out any) error {
	d := h.dispatcherFor(sessionID)
	id := d.NextID()

	env, err := mcp.NewRequest(id, method, params)
	if err != nil {
		return err
	}

	waiter := d.Register(id, timeout)
	if err := h.sender.Push(ctx, sessionID, env); err != nil {
		return fmt.Errorf("bidi: send %s to session %s: %w", method, sessionID, err)
	}

	resp, err := waiter.Await(ctx)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeResult(resp, out)
}

func decodeResult(resp *mcp.Envelope, out any) error {
	if resp.Error != nil {
		return resp.Error
	}
	if len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return mcp.NewErrorf(mcp.KindSerialization, "decode bidirectional result: %v", err)
	}
	return nil
}
