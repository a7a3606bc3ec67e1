package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Bondr/internal/ledger"
)

const namespace = "bondr"

// Metrics exports ledger activity to Prometheus.
// It is both a ledger.Observer and a ledger.Sink.
type Metrics struct {
	registry *prometheus.Registry
	ops      *prometheus.CounterVec   // ops counts operations by name and result code
	duration *prometheus.HistogramVec // duration tracks operation latency
	events   *prometheus.CounterVec   // events counts committed events by kind
	rejected *prometheus.CounterVec   // rejected counts requests refused before the ledger
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ops_total",
			Help:      "Ledger operations by name and result code.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "op_duration_seconds",
			Help:      "Time spent applying a ledger operation, issuer calls included.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Committed ledger events by kind.",
		}, []string{"kind"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Requests refused by the transport before reaching the ledger.",
		}, []string{"reason"}),
	}

	m.registry.MustRegister(m.ops, m.duration, m.events, m.rejected)

	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOp records the outcome of one ledger operation.
func (m *Metrics) ObserveOp(op string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = ledger.Code(err)
		if result == "" {
			result = "unknown"
		}
	}

	m.ops.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// Publish counts a committed event.
func (m *Metrics) Publish(ev ledger.Event) {
	m.events.WithLabelValues(string(ev.Kind)).Inc()
}

// Rejected counts a request refused by the transport.
func (m *Metrics) Rejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}
