package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Sink persists a batch of events. Errors are logged by Writer and never
// propagated to callers of Record — audit delivery must not fail the
// operation that produced the event.
type Sink interface {
	Append(ctx context.Context, events ...Event) error
}

const (
	defaultCapacity      = 1000
	defaultBatchSize     = 100
	defaultFlushInterval = time.Second
	overflowWarnInterval = time.Second
)

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCapacity sets the bounded buffer's capacity.
func WithCapacity(n int) WriterOption {
	return func(w *Writer) { w.capacity = n }
}

// WithBatchSize sets the maximum number of events flushed to the sink
// in one Append call.
func WithBatchSize(n int) WriterOption {
	return func(w *Writer) { w.batchSize = n }
}

// WithFlushInterval sets how often the worker flushes a non-empty
// buffer even if it hasn't reached batchSize.
func WithFlushInterval(d time.Duration) WriterOption {
	return func(w *Writer) { w.flushInterval = d }
}

// Writer delivers events to a Sink asynchronously through a bounded
// ring buffer. When the buffer is full, Record drops the oldest
// ordinary buffered event (an overflow event already buffered is kept)
// and enqueues a self-describing overflow event alongside the new one
// (rate-limited to one per second so a sustained overflow doesn't
// itself flood the buffer) — see spec.md §4.8.6.
type Writer struct {
	sink   Sink
	logger *slog.Logger

	capacity      int
	batchSize     int
	flushInterval time.Duration

	mu  sync.Mutex
	buf []Event

	wakeCh chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	dropCount        atomic.Int64
	lastOverflowWarn atomic.Int64
}

// NewWriter builds a Writer delivering to sink.
func NewWriter(sink Sink, logger *slog.Logger, opts ...WriterOption) *Writer {
	w := &Writer{
		sink:          sink,
		logger:        logger,
		capacity:      defaultCapacity,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		wakeCh:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.buf = make([]Event, 0, w.capacity)
	return w
}

// Start begins the background worker that batches and flushes events.
// Stops when ctx is canceled or Stop is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Record enqueues an event without blocking. On a full buffer, the
// oldest entry that is not an overflow event is evicted and a
// rate-limited overflow event is added, recording how many entries have
// been dropped in total.
func (w *Writer) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	w.mu.Lock()
	if len(w.buf) >= w.capacity {
		i := 0
		for i < len(w.buf)-1 && w.buf[i].Category == categoryOverflowInternal {
			i++
		}
		w.buf = append(w.buf[:i], w.buf[i+1:]...)
		w.dropCount.Add(1)
		w.maybeAppendOverflowLocked()
	}
	w.buf = append(w.buf, e)
	w.mu.Unlock()

	w.wake()
}

// maybeAppendOverflowLocked enqueues a synthetic overflow event if one
// hasn't been emitted in the last second. Caller holds w.mu and has
// already freed one slot for its own event; this evicts the oldest entry
// once more (counted as a drop) so both the overflow event and the
// caller's event fit within capacity.
func (w *Writer) maybeAppendOverflowLocked() {
	now := time.Now()
	last := w.lastOverflowWarn.Load()
	if now.UnixNano()-last < int64(overflowWarnInterval) {
		return
	}
	if !w.lastOverflowWarn.CompareAndSwap(last, now.UnixNano()) {
		return
	}
	if len(w.buf) > 0 && len(w.buf) >= w.capacity-1 {
		w.buf = w.buf[1:]
		w.dropCount.Add(1)
	}
	w.buf = append(w.buf, overflowEvent(w.dropCount.Load(), now))
}

func (w *Writer) wake() {
	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// DroppedCount returns the total number of events evicted due to buffer
// overflow since the Writer was created.
func (w *Writer) DroppedCount() int64 {
	return w.dropCount.Load()
}

// Depth returns the current number of buffered, unflushed events.
func (w *Writer) Depth() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buf)
}

// Stop signals the worker to flush remaining events and exit, and
// waits for it to finish. Safe to call once; subsequent calls are no-ops.
func (w *Writer) Stop() {
	w.once.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.wakeCh:
			w.flushReady(ctx)
		case <-ticker.C:
			w.flushReady(ctx)
		case <-ctx.Done():
			w.flushAll(context.Background())
			return
		case <-w.done:
			w.flushAll(context.Background())
			return
		}
	}
}

// flushReady flushes up to batchSize events if any are buffered.
func (w *Writer) flushReady(ctx context.Context) {
	batch := w.drain(w.batchSize)
	if len(batch) == 0 {
		return
	}
	w.deliver(ctx, batch)
	// More than one batch's worth may have accumulated between wakeups;
	// keep draining until empty so Stop's final flush doesn't leave a
	// backlog for a context that's about to disappear.
	for {
		next := w.drain(w.batchSize)
		if len(next) == 0 {
			return
		}
		w.deliver(ctx, next)
	}
}

// flushAll drains and delivers everything remaining, used on shutdown.
func (w *Writer) flushAll(ctx context.Context) {
	for {
		batch := w.drain(w.batchSize)
		if len(batch) == 0 {
			return
		}
		w.deliver(ctx, batch)
	}
}

func (w *Writer) drain(max int) []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) == 0 {
		return nil
	}
	n := len(w.buf)
	if n > max {
		n = max
	}
	batch := make([]Event, n)
	copy(batch, w.buf[:n])
	w.buf = w.buf[n:]
	return batch
}

func (w *Writer) deliver(ctx context.Context, batch []Event) {
	if err := w.sink.Append(ctx, batch...); err != nil && w.logger != nil {
		w.logger.Error("audit batch delivery failed", "error", err, "count", len(batch))
	}
}
