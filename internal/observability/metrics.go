package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	ChatRequests    *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	ResponseLatency prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, namespace)
}

// NewMetricsOn registers on a caller-supplied registry. Tests use this to
// avoid duplicate registration on the default registry.
func NewMetricsOn(reg prometheus.Registerer, namespace string) *Metrics {
	return newMetrics(reg, namespace)
}

func newMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active chat sessions.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Provider errors by provider and class.",
		}, []string{"provider", "class"}),
		ResponseLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_latency_ms",
			Help:      "End-to-end chat response latency in milliseconds.",
			Buckets:   []float64{50, 100, 200, 300, 500, 700, 1000, 2000, 5000, 10000, 30000},
		}),
	}
}

func (m *Metrics) ObserveResponseLatency(d time.Duration) {
	m.ResponseLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
