package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	stale      prometheus.Counter
	records    prometheus.Gauge
}

// NewMetrics creates and registers the memvault collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memvault",
			Name:      "operations_total",
			Help:      "Engine operations by name and outcome.",
		}, []string{"op", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "memvault",
			Name:      "operation_duration_seconds",
			Help:      "Engine operation latency, including provider calls.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"op"}),
		stale: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "memvault",
			Name:      "stale_index_entries_total",
			Help:      "Index hits whose record was missing from the store.",
		}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "memvault",
			Name:      "records",
			Help:      "Records in the store after the last write.",
		}),
	}
	registry.MustRegister(m.operations, m.duration, m.stale, m.records)
	return m
}

// Observe records one operation outcome and its latency.
func (m *Metrics) Observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// StaleEntry counts one index hit that had no backing record.
func (m *Metrics) StaleEntry() {
	if m == nil {
		return
	}
	m.stale.Inc()
}

// SetRecords sets the records gauge.
func (m *Metrics) SetRecords(n int) {
	if m == nil {
		return
	}
	m.records.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
