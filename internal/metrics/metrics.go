// Package metrics exposes Prometheus instruments for the orchestration
// engine. Everything hangs off an explicitly constructed registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "persona"

// Attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeUnhealthy = "unhealthy"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Metrics holds the instruments. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	attempts  *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	sessions  prometheus.Gauge
	results   *prometheus.CounterVec
}

// New creates the instruments on a fresh registry, including the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider attempts by operation, provider and outcome.",
		}, []string{"operation", "provider", "outcome"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_activations_total",
			Help:      "Operations served from static fallback content.",
		}, []string{"operation"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Latency of provider operation calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation", "provider"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_live",
			Help:      "Sessions currently held in memory.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_total",
			Help:      "Result generation calls by whether the cached payload was served.",
		}, []string{"cached"}),
	}
	reg.MustRegister(
		m.attempts, m.fallbacks, m.latency, m.sessions, m.results,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveAttempt counts one provider attempt. Latency is recorded only for
// attempts that reached the operation call.
func (m *Metrics) ObserveAttempt(operation, provider, outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation, provider, outcome).Inc()
	if outcome != OutcomeUnhealthy {
		m.latency.WithLabelValues(operation, provider).Observe(latency.Seconds())
	}
}

// FallbackActivated counts an operation served from static content.
func (m *Metrics) FallbackActivated(operation string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(operation).Inc()
}

// SetLiveSessions sets the live session gauge.
func (m *Metrics) SetLiveSessions(n int) {
	if m == nil {
		return
	}
	m.sessions.Set(float64(n))
}

// ResultServed counts a result generation call.
func (m *Metrics) ResultServed(cached bool) {
	if m == nil {
		return
	}
	label := "false"
	if cached {
		label = "true"
	}
	m.results.WithLabelValues(label).Inc()
}
