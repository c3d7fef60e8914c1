package wstransport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// reapInterval is how often the elicitation pipe sweeps for expired
// entries, so an entry is cancelled at most about one second after its
// deadline.
const reapInterval = 1 * time.Second

// pendingElicit is one outstanding elicit request awaiting the client's
// answer.
type pendingElicit struct {
	deadline   time.Time
	responseCh chan *mcp.ElicitResult
	retryCount int
}

// ElicitationPipe correlates server-initiated "elicitation/create"
// requests with the client's eventual reply, independent of the general
// request/response dispatcher: an elicit request carries its own
// deadline and, on expiry, resolves to a synthesized Cancel rather than
// an error, which the generic correlation dispatcher has no vocabulary
// for. Built in the same mutex-guarded-map-plus-cleanup-goroutine idiom
// as the in-memory rate limiter and session store.
type ElicitationPipe struct {
	mu      sync.Mutex
	pending map[string]*pendingElicit
}

func newElicitationPipe() *ElicitationPipe {
	return &ElicitationPipe{pending: make(map[string]*pendingElicit)}
}

// idKey renders an mcp.ID as a map key. mcp.ID.String() is only valid
// when IsString() is true, so numeric ids are formatted separately.
func idKey(id mcp.ID) string {
	if id.IsString() {
		return "s:" + id.String()
	}
	return fmt.Sprintf("n:%d", id.Number())
}

// register opens a waiter for id and returns the channel its result (or
// the synthesized timeout Cancel) will arrive on. Buffered by one so a
// racing resolve/reap never blocks on a receiver that gave up.
func (p *ElicitationPipe) register(id mcp.ID, deadline time.Time) <-chan *mcp.ElicitResult {
	ch := make(chan *mcp.ElicitResult, 1)
	p.mu.Lock()
	p.pending[idKey(id)] = &pendingElicit{deadline: deadline, responseCh: ch}
	p.mu.Unlock()
	return ch
}

// cancel removes a waiter without delivering a result, used when the
// caller's own context is done before the client ever answers.
func (p *ElicitationPipe) cancel(id mcp.ID) {
	p.mu.Lock()
	delete(p.pending, idKey(id))
	p.mu.Unlock()
}

// resolve delivers an inbound response envelope to its waiter if one is
// registered for env.ID, reporting whether it claimed the envelope. A
// response carrying a protocol error resolves the waiter to a synthesized
// Cancel rather than propagating the error, since ElicitResult has no
// error variant.
func (p *ElicitationPipe) resolve(env *mcp.Envelope) bool {
	key := idKey(env.ID)
	p.mu.Lock()
	entry, ok := p.pending[key]
	if ok {
		delete(p.pending, key)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}

	if env.Error != nil {
		entry.responseCh <- &mcp.ElicitResult{Action: mcp.ElicitActionCancel}
		return true
	}
	var result mcp.ElicitResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		entry.responseCh <- &mcp.ElicitResult{Action: mcp.ElicitActionCancel}
		return true
	}
	entry.responseCh <- &result
	return true
}

// reap sweeps expired entries every reapInterval, synthesizing
// ElicitResult{Action: Cancel} for each one, until done fires.
func (p *ElicitationPipe) reap(done <-chan struct{}) {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

func (p *ElicitationPipe) sweep() {
	now := time.Now()
	var expired []*pendingElicit

	p.mu.Lock()
	for key, entry := range p.pending {
		if now.After(entry.deadline) {
			expired = append(expired, entry)
			delete(p.pending, key)
		}
	}
	p.mu.Unlock()

	for _, entry := range expired {
		entry.responseCh <- &mcp.ElicitResult{Action: mcp.ElicitActionCancel}
	}
}
