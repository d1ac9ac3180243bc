// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ledger operation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	ledgerOperations    *prometheus.CounterVec
	ledgerRetries       *prometheus.CounterVec
}

// New creates the collectors on a private registry, alongside the Go and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		ledgerOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Ledger operations by type and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		ledgerRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_retries_total",
				Help: "Ledger operations retried after storage contention.",
			},
			[]string{"operation"},
		),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.ledgerOperations,
		m.ledgerRetries,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) InFlightInc() {
	if m != nil {
		m.httpInFlight.Inc()
	}
}

func (m *Metrics) InFlightDec() {
	if m != nil {
		m.httpInFlight.Dec()
	}
}

// ObserveRequest records a finished HTTP request.
func (m *Metrics) ObserveRequest(method, path, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

// LedgerOperation counts one finished ledger operation.
func (m *Metrics) LedgerOperation(operation, outcome string) {
	if m != nil {
		m.ledgerOperations.WithLabelValues(operation, outcome).Inc()
	}
}

// LedgerRetry counts one retry caused by contention.
func (m *Metrics) LedgerRetry(operation string) {
	if m != nil {
		m.ledgerRetries.WithLabelValues(operation).Inc()
	}
}
