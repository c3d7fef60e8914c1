package registry

import (
	"context"
	"sync"

	"github.com/turbomcp/turbomcp/internal/domain/bidi"
	"github.com/turbomcp/turbomcp/internal/domain/session"
)

// ContextPool hands out RequestContext values for the duration of a
// single call and reclaims them afterward, avoiding an allocation per
// tool/resource/prompt invocation under steady load. Grounded on the
// teacher's preference for explicit resource lifecycles (paired
// acquire/release) over finalizers.
type ContextPool struct {
	pool sync.Pool
}

// NewContextPool returns an empty pool.
func NewContextPool() *ContextPool {
	return &ContextPool{pool: sync.Pool{New: func() any { return &RequestContext{} }}}
}

// Acquire returns a RequestContext ready for one call, reusing a
// previously released instance when available. client and notifier may
// be nil when no bidirectional hub is configured.
func (p *ContextPool) Acquire(ctx context.Context, sess *session.Session, meta HandlerMeta, client *bidi.Client, notifier ResourceNotifier) *RequestContext {
	rc := p.pool.Get().(*RequestContext)
	rc.ctx = ctx
	rc.Session = sess
	rc.Handler = meta
	rc.client = client
	rc.notifier = notifier
	return rc
}

// Release clears rc and returns it to the pool. Callers must not use rc
// again after calling Release.
func (p *ContextPool) Release(rc *RequestContext) {
	rc.Reset()
	p.pool.Put(rc)
}
