package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive          prometheus.Gauge
	SessionsCreatedTotal    prometheus.Counter
	SessionCloseErrorsTotal prometheus.Counter
	SessionsReapedTotal     prometheus.Counter

	// Browser operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of live browser sessions",
			},
		),
		SessionsCreatedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_created_total",
				Help: "Total number of browser contexts launched",
			},
		),
		SessionCloseErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "session_close_errors_total",
				Help: "Total number of browser context close failures",
			},
		),
		SessionsReapedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_reaped_total",
				Help: "Total number of sessions closed for inactivity",
			},
		),

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_operations_total",
				Help: "Total number of browser operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "browser_operation_duration_seconds",
				Help:    "Duration of browser operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsCreatedTotal)
	m.registry.MustRegister(m.SessionCloseErrorsTotal)
	m.registry.MustRegister(m.SessionsReapedTotal)

	m.registry.MustRegister(m.OperationsTotal)
	m.registry.MustRegister(m.OperationDuration)

	m.registry.MustRegister(m.HTTPRequestsTotal)
	m.registry.MustRegister(m.HTTPRequestDuration)
}

// SetActiveSessions records the live session count
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// RecordSessionCreated counts a launched context
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreatedTotal.Inc()
}

// RecordCloseError counts a swallowed close failure
func (m *Metrics) RecordCloseError() {
	if m == nil {
		return
	}
	m.SessionCloseErrorsTotal.Inc()
}

// RecordReaped counts an idle session closed by the reaper
func (m *Metrics) RecordReaped() {
	if m == nil {
		return
	}
	m.SessionsReapedTotal.Inc()
}

// RecordOperation records a browser operation outcome. status is "ok" or
// the lower-cased error code.
func (m *Metrics) RecordOperation(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordHTTPRequest records a served request
func (m *Metrics) RecordHTTPRequest(method, route, code string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
