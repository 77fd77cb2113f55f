package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tierwatch"

// Metrics implements the dispatch and tiering observers.
type Metrics struct {
	registry *prometheus.Registry

	notifications    *prometheus.CounterVec
	changes          *prometheus.CounterVec
	tieringActions   *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	lastNotification prometheus.Gauge
}

// New registers the collectors on a fresh registry. Process and Go runtime
// collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_received_total",
			Help:      "Notifications received from the subscription source, by topic.",
		}, []string{"topic"}),
		changes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_processed_total",
			Help:      "Location tag changes processed, by entity kind and outcome.",
		}, []string{"kind", "outcome"}),
		tieringActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tiering_actions_total",
			Help:      "Tiering backend invocations, by backend and status.",
		}, []string{"backend", "status"}),
		dispatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching one notification.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		lastNotification: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_notification_timestamp_seconds",
			Help:      "Unix time of the most recent notification.",
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) NotificationReceived(topic string) {
	m.notifications.WithLabelValues(topic).Inc()
	m.lastNotification.SetToCurrentTime()
}

func (m *Metrics) ChangeProcessed(kind, outcome string) {
	m.changes.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) DispatchDuration(d time.Duration) {
	m.dispatchDuration.Observe(d.Seconds())
}

func (m *Metrics) TieringApplied(backend, status string) {
	m.tieringActions.WithLabelValues(backend, status).Inc()
}
