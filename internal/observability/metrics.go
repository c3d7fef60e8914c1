package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments the core exposes, mirroring
// the teacher's adapter/inbound/http/metrics.go shape generalized from
// one HTTP transport's request/response cycle to every MCP method and
// tool call, across every transport.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	ActiveSessions   prometheus.Gauge
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	ToolTimeouts     prometheus.Counter
}

// NewMetrics creates and registers all instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "turbomcp",
				Name:      "requests_total",
				Help:      "Total number of MCP requests processed",
			},
			[]string{"method", "outcome"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "turbomcp",
				Name:      "request_duration_seconds",
				Help:      "MCP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ActiveSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "turbomcp",
				Name:      "active_sessions",
				Help:      "Number of active MCP sessions",
			},
		),
		ToolCallsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "turbomcp",
				Name:      "tool_calls_total",
				Help:      "Total tool invocations",
			},
			[]string{"tool", "outcome"},
		),
		ToolCallDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "turbomcp",
				Name:      "tool_call_duration_seconds",
				Help:      "Tool call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		ToolTimeouts: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "turbomcp",
				Name:      "tool_timeouts_total",
				Help:      "Total tool calls that exceeded their deadline",
			},
		),
	}
}
