// Package correlation matches outstanding JSON-RPC requests with their
// eventual responses across an MCP connection. A single connection can
// have requests in flight in both directions at once (the server
// answering client calls, the client answering server-initiated
// sampling/elicitation/roots calls), and responses may arrive out of
// order; Dispatcher is the one place that bookkeeping lives.
package correlation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Dispatcher tracks pending requests keyed by message ID and delivers
// their responses (or a synthesized timeout/cancellation error) to
// whichever goroutine is waiting on them. One Dispatcher per connection.
type Dispatcher struct {
	mu      sync.Mutex
	pending map[string]*pendingCall
	counter atomic.Int64
}

type pendingCall struct {
	resultCh chan result
	timer    *time.Timer
	done     bool
}

type result struct {
	envelope *mcp.Envelope
	err      error
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{pending: make(map[string]*pendingCall)}
}

// NextID generates a fresh request ID for server-initiated requests
// (sampling/createMessage, elicitation/create, roots/list), distinct
// from whatever ID space the client uses for its own requests.
func (d *Dispatcher) NextID() mcp.ID {
	return mcp.NewStringID(fmt.Sprintf("srv-%d", d.counter.Add(1)))
}

func idKey(id mcp.ID) string {
	if id.IsString() {
		return "s:" + id.String()
	}
	return fmt.Sprintf("n:%d", id.Number())
}

// Register records that id is awaiting a response and returns a Waiter
// to block on. If timeout is non-zero, the Waiter's Await resolves with
// a KindTimeout error once it elapses, even if Await itself is never
// called until after the deadline.
func (d *Dispatcher) Register(id mcp.ID, timeout time.Duration) *Waiter {
	key := idKey(id)
	call := &pendingCall{resultCh: make(chan result, 1)}

	d.mu.Lock()
	d.pending[key] = call
	d.mu.Unlock()

	if timeout > 0 {
		call.timer = time.AfterFunc(timeout, func() {
			d.deliver(key, result{err: mcp.NewErrorf(mcp.KindTimeout, "request %s timed out after %s", key, timeout)})
		})
	}

	return &Waiter{d: d, key: key, call: call}
}

// Resolve delivers env to the goroutine waiting on its ID. Returns false
// if nothing was waiting (unsolicited or already-completed response).
func (d *Dispatcher) Resolve(env *mcp.Envelope) bool {
	key := idKey(env.ID)
	if env.Error != nil {
		return d.deliver(key, result{err: env.Error})
	}
	return d.deliver(key, result{envelope: env})
}

// CancelRequest completes a pending call early with KindCancelled, as
// happens when a notifications/cancelled arrives for it.
func (d *Dispatcher) CancelRequest(id mcp.ID, reason string) bool {
	return d.deliver(idKey(id), result{err: mcp.NewErrorf(mcp.KindCancelled, "request cancelled: %s", reason)})
}

func (d *Dispatcher) deliver(key string, res result) bool {
	d.mu.Lock()
	call, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()

	if !ok || call.done {
		return false
	}
	call.done = true
	if call.timer != nil {
		call.timer.Stop()
	}
	call.resultCh <- res
	return true
}

// Pending returns the number of requests currently awaiting a response,
// for observability and graceful-shutdown draining.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close completes every outstanding call with a transport-closed error,
// unblocking any goroutine waiting in Await. Call when the underlying
// connection is torn down.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	calls := d.pending
	d.pending = make(map[string]*pendingCall)
	d.mu.Unlock()

	for _, call := range calls {
		if call.done {
			continue
		}
		call.done = true
		if call.timer != nil {
			call.timer.Stop()
		}
		call.resultCh <- result{err: mcp.NewError(mcp.KindTransport, "connection closed before response arrived")}
	}
}

// Waiter is a handle on one Register'd call.
type Waiter struct {
	d    *Dispatcher
	key  string
	call *pendingCall
}

// Await blocks until the response arrives, the timeout (if any) elapses,
// or ctx is cancelled, whichever comes first.
func (w *Waiter) Await(ctx context.Context) (*mcp.Envelope, error) {
	select {
	case res := <-w.call.resultCh:
		if res.err != nil {
			return nil, res.err
		}
		return res.envelope, nil
	case <-ctx.Done():
		w.d.deliver(w.key, result{}) // best-effort removal; no-op if already delivered
		return nil, mcp.NewError(mcp.KindCancelled, "request cancelled by caller context")
	}
}
