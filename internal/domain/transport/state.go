package transport

import "sync/atomic"

// StateTracker is an embeddable atomic State holder. Adapters embed it
// so State()/markOpen/markClosing/markClosed share one implementation
// instead of each adapter hand-rolling its own atomic int.
type StateTracker struct {
	state atomic.Int32
}

// State reports the current lifecycle state.
func (t *StateTracker) State() State {
	return State(t.state.Load())
}

// SetState transitions unconditionally. Callers that need
// compare-and-swap semantics (e.g. "only close once") should layer a
// sync.Once on top, as the stdio/tcp/unixsock adapters do for Close.
func (t *StateTracker) SetState(s State) {
	t.state.Store(int32(s))
}
