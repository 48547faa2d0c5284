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
	ActiveSessions    prometheus.Gauge
	EvictedSessions   prometheus.Counter
	UpdatesTotal      *prometheus.CounterVec
	AuthAttempts      *prometheus.CounterVec
	ProviderErrors    *prometheus.CounterVec
	CompletionLatency prometheus.Histogram
}

func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of user sessions currently held in the store.",
		}),
		EvictedSessions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evicted_sessions_total",
			Help:      "Sessions removed by the idle sweeper.",
		}),
		UpdatesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Inbound platform updates by kind.",
		}, []string{"kind"}),
		AuthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by method and outcome.",
		}, []string{"method", "outcome"}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Language-model provider errors by provider and code.",
		}, []string{"provider", "code"}),
		CompletionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Latency of language-model completion calls in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 45, 90},
		}),
	}
}

func (m *Metrics) ObserveCompletionLatency(d time.Duration) {
	m.CompletionLatency.Observe(d.Seconds())
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
