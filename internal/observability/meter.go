package observability

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/turbomcp/turbomcp"

// NewMeterProvider builds an OTel meter provider that periodically
// exports to a stdout metric exporter writing newline-delimited JSON
// to w, mirroring NewTracerProvider's stdout-only backend. Prometheus
// remains the primary scrape target (§4.11); this meter exists so a
// deployment without a scraper still gets periodic metric snapshots
// through the same collector-less pipeline as traces.
func NewMeterProvider(w io.Writer) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter))), nil
}

// requestCounter wraps the OTel instrument mirroring Prometheus'
// RequestsTotal, so both backends observe the same event without the
// request path depending on which ones are configured.
type requestCounter struct {
	counter metric.Int64Counter
}

// newRequestCounter creates the OTel request counter instrument against
// mp's meter. mp may be nil, in which case every call is a no-op.
func newRequestCounter(mp metric.MeterProvider) (*requestCounter, error) {
	if mp == nil {
		return nil, nil
	}
	counter, err := mp.Meter(meterName).Int64Counter(
		"turbomcp.requests_total",
		metric.WithDescription("Total number of MCP requests processed"),
	)
	if err != nil {
		return nil, err
	}
	return &requestCounter{counter: counter}, nil
}

func (c *requestCounter) add(ctx context.Context, method, outcome string) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}
