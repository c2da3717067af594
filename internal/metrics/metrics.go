// Package metrics holds Prometheus counters for split submissions,
// reconciliation ticks and backend requests, and the optional HTTP server
// exposing them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the client.
type Metrics struct {
	registry         *prometheus.Registry
	submissionsTotal *prometheus.CounterVec
	ticksTotal       *prometheus.CounterVec
	backendRequests  *prometheus.CounterVec
	openSessions     prometheus.Gauge
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	submissionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "syncmonster_submissions_total",
		Help: "Split submissions by outcome (accepted or failed)",
	}, []string{"outcome"})
	ticksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "syncmonster_reconcile_ticks_total",
		Help: "Reconciliation ticks by result (ok or error)",
	}, []string{"result"})
	backendRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "syncmonster_backend_requests_total",
		Help: "Requests sent to the backend by method and status code",
	}, []string{"code", "method"})
	openSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "syncmonster_open_sessions",
		Help: "Number of videos currently open and being reconciled",
	})

	registry.MustRegister(
		submissionsTotal,
		ticksTotal,
		backendRequests,
		openSessions,
	)

	return &Metrics{
		registry:         registry,
		submissionsTotal: submissionsTotal,
		ticksTotal:       ticksTotal,
		backendRequests:  backendRequests,
		openSessions:     openSessions,
	}
}

// ObserveSubmission counts one submission outcome.
func (m *Metrics) ObserveSubmission(outcome string) {
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTick counts one reconciliation tick.
func (m *Metrics) ObserveTick(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.ticksTotal.WithLabelValues(result).Inc()
}

// SessionOpened increments the open sessions gauge.
func (m *Metrics) SessionOpened() {
	m.openSessions.Inc()
}

// SessionClosed decrements the open sessions gauge.
func (m *Metrics) SessionClosed() {
	m.openSessions.Dec()
}

// InstrumentTransport wraps rt so every backend request is counted. A nil rt
// wraps http.DefaultTransport.
func (m *Metrics) InstrumentTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.backendRequests, rt)
}

// Registry returns the registry holding every metric.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
