// Package telemetry owns the Prometheus metrics of the solver.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is registered on its own registry so tests can create as many as
// they like.
type Metrics struct {
	registry *prometheus.Registry

	sessions        *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	strategyResults *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quizsolver_sessions_total",
			Help: "Finished quiz sessions by outcome.",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quizsolver_active_sessions",
			Help: "Sessions currently being solved.",
		}),
		strategyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quizsolver_strategy_results_total",
			Help: "Strategy results by strategy and status.",
		}, []string{"strategy", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quizsolver_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
	}
	m.registry.MustRegister(
		m.sessions,
		m.activeSessions,
		m.strategyResults,
		m.stageDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// SessionStarted bumps the active gauge; the returned func records the
// outcome and releases it.
func (m *Metrics) SessionStarted() func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	m.activeSessions.Inc()
	return func(outcome string) {
		m.activeSessions.Dec()
		m.sessions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) StrategyResult(strategy, status string) {
	if m == nil {
		return
	}
	m.strategyResults.WithLabelValues(strategy, status).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
