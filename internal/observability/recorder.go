package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/turbomcp/turbomcp/pkg/mcp"
)

// Recorder is the single entry point the server runtime and transports
// call into for every request: it opens a tracing span, updates
// Prometheus instruments (and, if a meter provider is configured, the
// parallel OTel metric pipeline), and folds the outcome into the
// global and (when tenantID is set) per-tenant atomic counters, per
// spec.md §4.11.
type Recorder struct {
	tracerProvider trace.TracerProvider
	requestCounter *requestCounter
	metrics        *Metrics
	global         *Counters
	tenants        *tenantLRU
}

// RecorderOption configures optional Recorder behavior.
type RecorderOption func(*Recorder)

// WithMeterProvider adds an OTel metric pipeline alongside Prometheus,
// mirroring requests_total through mp's meter as well.
func WithMeterProvider(mp metric.MeterProvider, logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		counter, err := newRequestCounter(mp)
		if err != nil {
			if logger != nil {
				logger.Warn("observability: failed to create OTel request counter", "error", err)
			}
			return
		}
		r.requestCounter = counter
	}
}

// NewRecorder builds a Recorder. tp may be nil to disable tracing
// (tests, or a deployment that only wants metrics); reg registers the
// Prometheus instruments.
func NewRecorder(tp trace.TracerProvider, reg prometheus.Registerer, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		tracerProvider: tp,
		metrics:        NewMetrics(reg),
		global:         newCounters(),
		tenants:        newTenantLRU(defaultTenantLRUSize),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Global returns the never-evicted global Counters.
func (r *Recorder) Global() *Counters { return r.global }

// Tenant returns tenantID's Counters without touching its LRU
// recency, or nil if the tenant has never been recorded.
func (r *Recorder) Tenant(tenantID string) *Counters {
	r.tenants.mu.Lock()
	defer r.tenants.mu.Unlock()
	elem, ok := r.tenants.items[tenantID]
	if !ok {
		return nil
	}
	return elem.Value.(*tenantEntry).counters
}

// TenantCount reports how many tenants currently have retained
// Counters, for the LRU bound's own observability.
func (r *Recorder) TenantCount() int { return r.tenants.Len() }

// RequestScope is one in-flight request's handle, opened by
// BeginRequest and closed by EndRequest.
type RequestScope struct {
	r      *Recorder
	ctx    context.Context
	span   *RequestSpan
	method string
	tenant *Counters
	start  time.Time
}

// BeginRequest opens a span (if tracing is configured) named after
// method and marks the request in-flight in the global and, if
// tenantID is non-empty, the tenant's counters.
func (r *Recorder) BeginRequest(ctx context.Context, method, sessionID, tenantID, requestID string) (context.Context, *RequestScope) {
	scope := &RequestScope{r: r, method: method, start: time.Now()}

	if r.tracerProvider != nil {
		ctx, scope.span = StartRequest(ctx, r.tracerProvider, method, sessionID, tenantID, requestID)
	}

	r.global.RequestsInFlight.Add(1)
	if tenantID != "" {
		scope.tenant = r.tenants.touch(tenantID)
		scope.tenant.RequestsInFlight.Add(1)
	}
	scope.ctx = ctx
	return ctx, scope
}

// EndRequest closes a scope opened by BeginRequest. outcome is "ok" or
// an error class string (see ErrorClass); err, if non-nil, is attached
// to the span and tallied by class in both counter sets.
func (s *RequestScope) EndRequest(outcome string, err error) {
	duration := time.Since(s.start)
	durationUs := duration.Microseconds()

	s.r.global.RequestsInFlight.Add(-1)
	s.r.global.recordRequest(durationUs, outcome)
	if s.tenant != nil {
		s.tenant.RequestsInFlight.Add(-1)
		s.tenant.recordRequest(durationUs, outcome)
	}
	if err != nil {
		class := ErrorClass(err)
		s.r.global.recordError(class)
		if s.tenant != nil {
			s.tenant.recordError(class)
		}
	}

	s.r.metrics.RequestsTotal.WithLabelValues(s.method, outcome).Inc()
	s.r.metrics.RequestDuration.WithLabelValues(s.method).Observe(duration.Seconds())
	s.r.requestCounter.add(s.ctx, s.method, outcome)

	if s.span != nil {
		s.span.RecordError(err)
		s.span.End(outcome, duration)
	}
}

// RecordToolCall folds one tool invocation's outcome into the global
// and (if tenantID is set) per-tenant tool-call counters and the
// Prometheus tool instruments. timedOut marks a call that hit its
// deadline (spec.md's default 30s, or a tighter per-call budget).
func (r *Recorder) RecordToolCall(toolName, tenantID string, duration time.Duration, outcome string, timedOut bool) {
	r.global.recordToolCall(outcome, timedOut)
	if tenantID != "" {
		r.tenants.touch(tenantID).recordToolCall(outcome, timedOut)
	}
	r.metrics.ToolCallsTotal.WithLabelValues(toolName, outcome).Inc()
	r.metrics.ToolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
	if timedOut {
		r.metrics.ToolTimeouts.Inc()
	}
}

// SetActiveSessions updates the active-session gauge; callers pass the
// session store's current live count.
func (r *Recorder) SetActiveSessions(n int) {
	r.metrics.ActiveSessions.Set(float64(n))
}

// ErrorClass buckets err into spec.md §4.11's "errors by class"
// dimension. A *mcp.Error classifies by its Kind; anything else falls
// under "internal".
func ErrorClass(err error) string {
	if err == nil {
		return "ok"
	}
	if mcpErr, ok := err.(*mcp.Error); ok {
		return mcpErr.Kind.String()
	}
	return "internal"
}
