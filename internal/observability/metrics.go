package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus instrumentation. It replaces the
// teacher's CloudWatch-backed pkg/observability.Metrics with a similar
// method shape (RecordOperation/RecordError/RecordCache/RecordBusinessMetric)
// against a local Prometheus registry, since CloudWatch is an AWS-façade
// concern this engine does not carry.
type Metrics struct {
	operations  *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	errors      *prometheus.CounterVec
	cacheHits   *prometheus.CounterVec
	business    *prometheus.GaugeVec
	registry    *prometheus.Registry
}

// NewMetrics creates a fresh Metrics instance backed by its own registry,
// so tests can construct one per case rather than sharing global state.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "operations_total", Help: "Count of engine operations by name and status.",
		}, []string{"operation", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "operation_latency_seconds", Help: "Latency of engine operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "errors_total", Help: "Count of errors by kind.",
		}, []string{"kind"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_result_total", Help: "Cache hit/miss counts by cache name.",
		}, []string{"cache", "result"}),
		business: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "business_metric", Help: "Ad-hoc business gauges (tier sizes, community counts, ...).",
		}, []string{"metric"}),
		registry: reg,
	}
	reg.MustRegister(m.operations, m.latency, m.errors, m.cacheHits, m.business)
	return m
}

// Registry exposes the underlying Prometheus registry for a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordOperation records an operation's outcome and duration.
func (m *Metrics) RecordOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.operations.WithLabelValues(operation, status).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError records an error occurrence by its xerrors.Kind string.
func (m *Metrics) RecordError(kind string) {
	m.errors.WithLabelValues(kind).Inc()
}

// RecordCache records a cache hit or miss for the named cache.
func (m *Metrics) RecordCache(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheHits.WithLabelValues(cache, result).Inc()
}

// RecordBusinessMetric sets an ad-hoc gauge (e.g. short-term tier size).
func (m *Metrics) RecordBusinessMetric(name string, value float64) {
	m.business.WithLabelValues(name).Set(value)
}
