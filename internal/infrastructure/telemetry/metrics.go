package telemetry

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pms/billing/internal/domain/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected" // validation failed before any backend call
	OutcomeConflict = "conflict" // another submission was in flight
)

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool
	// Path is the URL path of the scrape endpoint.
	// Default: /metrics
	Path string
	// Namespace prefixes every metric.
	// Default: pms
	Namespace string
	// HistogramBuckets are the buckets for backend request durations.
	// Default: prometheus.DefBuckets
	HistogramBuckets []float64
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:          true,
		Path:             "/metrics",
		Namespace:        "pms",
		HistogramBuckets: prometheus.DefBuckets,
	}
}

// Metrics collects billing engine metrics on a private registry.
// A nil *Metrics is valid and records nothing.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Metrics struct {
	config   MetricsConfig
	registry *prometheus.Registry

	backendRequests  *prometheus.CounterVec
	backendDuration  *prometheus.HistogramVec
	readings         *prometheus.CounterVec
	ledgerMutations  *prometheus.CounterVec
	payments         *prometheus.CounterVec
	recycleBinBatch  *prometheus.CounterVec
	recycleBinSingle *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpInFlight     prometheus.Gauge
}

// NewMetrics creates the collector and registers every metric
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	if config.Namespace == "" {
		config.Namespace = "pms"
	}
	if len(config.HistogramBuckets) == 0 {
		config.HistogramBuckets = prometheus.DefBuckets
	}

	m := &Metrics{
		config:   config,
		registry: prometheus.NewRegistry(),
	}

	m.backendRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "backend_requests_total",
			Help:      "Total number of requests sent to the billing backend.",
		},
		[]string{"operation", "outcome"},
	)
	m.backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of billing backend requests in seconds.",
			Buckets:   config.HistogramBuckets,
		},
		[]string{"operation"},
	)
	m.readings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "meter_readings_total",
			Help:      "Meter readings recorded, by utility and outcome.",
		},
		[]string{"utility", "outcome"},
	)
	m.ledgerMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "ledger_mutations_total",
			Help:      "Bill item mutations, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	m.payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "payment_submissions_total",
			Help:      "Payment submissions, by method and outcome.",
		},
		[]string{"method", "outcome"},
	)
	m.recycleBinBatch = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "recyclebin_batch_total",
			Help:      "Bulk recycle-bin commits, by kind, action and outcome.",
		},
		[]string{"kind", "action", "outcome"},
	)
	m.recycleBinSingle = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "recyclebin_operations_total",
			Help:      "Single-entity recycle-bin operations, by kind, action and outcome.",
		},
		[]string{"kind", "action", "outcome"},
	)

	m.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "http_server_requests_total",
			Help:      "HTTP requests served, by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)
	m.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Name:      "http_server_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   config.HistogramBuckets,
		},
		[]string{"method", "route"},
	)
	m.httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "http_server_active_requests",
			Help:      "HTTP requests currently being served.",
		},
	)

	m.registry.MustRegister(
		m.backendRequests,
		m.backendDuration,
		m.readings,
		m.ledgerMutations,
		m.payments,
		m.recycleBinBatch,
		m.recycleBinSingle,
		m.httpRequests,
		m.httpDuration,
		m.httpInFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Outcome maps an error to its outcome label
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case shared.IsValidation(err):
		return OutcomeRejected
	case errors.Is(err, shared.ErrConflict):
		return OutcomeConflict
	default:
		return OutcomeFailure
	}
}

// ObserveBackendRequest records one backend round trip
func (m *Metrics) ObserveBackendRequest(operation, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.backendRequests.WithLabelValues(operation, outcome).Inc()
	m.backendDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncReading counts a meter reading submission
func (m *Metrics) IncReading(utility, outcome string) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(utility, outcome).Inc()
}

// IncLedgerMutation counts a bill item add, patch or delete
func (m *Metrics) IncLedgerMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.ledgerMutations.WithLabelValues(operation, outcome).Inc()
}

// IncPayment counts a payment submission
func (m *Metrics) IncPayment(method, outcome string) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(method, outcome).Inc()
}

// IncRecycleBinBatch counts a bulk commit
func (m *Metrics) IncRecycleBinBatch(kind, action, outcome string) {
	if m == nil {
		return
	}
	m.recycleBinBatch.WithLabelValues(kind, action, outcome).Inc()
}

// IncRecycleBinOperation counts a single restore or delete
func (m *Metrics) IncRecycleBinOperation(kind, action, outcome string) {
	if m == nil {
		return
	}
	m.recycleBinSingle.WithLabelValues(kind, action, outcome).Inc()
}

// ObserveHTTPRequest records one served HTTP request
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// AddActiveRequests moves the in-flight HTTP request gauge by delta
func (m *Metrics) AddActiveRequests(delta float64) {
	if m == nil {
		return
	}
	m.httpInFlight.Add(delta)
}

// Registry returns the private registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Path returns the scrape path
func (m *Metrics) Path() string {
	return m.config.Path
}

// Handler returns the scrape handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
