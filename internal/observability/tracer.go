// Package observability implements spec.md §4.11: a structured tracing
// span per request, Prometheus counters, and lock-free per-tenant
// metrics with an LRU eviction bound. It wires go.opentelemetry.io/otel
// (tracer provider + stdout span exporter) and
// github.com/prometheus/client_golang, both present but unwired in the
// teacher's require list — this package is where they finally get
// exercised.
package observability

import (
	"context"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/turbomcp/turbomcp"

// NewTracerProvider builds a tracer provider that batches spans to a
// stdout exporter writing newline-delimited JSON to w. No OTLP exporter
// is wired: the teacher's dependency set only carries the stdout
// exporters, so that's the only backend this module targets.
func NewTracerProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// RequestSpan wraps one request's span for the lifetime of its handler.
type RequestSpan struct {
	span trace.Span
}

// StartRequest opens a span for method carrying the attribute set
// spec.md §4.11 names: method, session_id, tenant_id (if set),
// request_id. duration_us and outcome are attached at End.
func StartRequest(ctx context.Context, tp trace.TracerProvider, method, sessionID, tenantID, requestID string) (context.Context, *RequestSpan) {
	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("session_id", sessionID),
		attribute.String("request_id", requestID),
	}
	if tenantID != "" {
		attrs = append(attrs, attribute.String("tenant_id", tenantID))
	}
	ctx, span := tp.Tracer(tracerName).Start(ctx, method, trace.WithAttributes(attrs...))
	return ctx, &RequestSpan{span: span}
}

// RecordError attaches err to the span without finalizing its status;
// the final outcome is still decided by the caller of End.
func (s *RequestSpan) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.span.RecordError(err)
}

// End closes the span with the request's outcome ("ok" or an error
// class) and elapsed duration in microseconds.
func (s *RequestSpan) End(outcome string, duration time.Duration) {
	if s == nil {
		return
	}
	s.span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int64("duration_us", duration.Microseconds()),
	)
	if outcome != "ok" {
		s.span.SetStatus(codes.Error, outcome)
	}
	s.span.End()
}
