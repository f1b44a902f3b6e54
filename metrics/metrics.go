// Package metrics holds the Prometheus collectors for generation calls,
// sessions and the HTTP surface. Collectors live on a private registry so
// tests and multiple servers in one process never collide.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rolefit"

// Generation kinds.
const (
	KindQuestion   = "question"
	KindSuggestion = "suggestion"
)

// Generation outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeTransport  = "transport_error"
	OutcomeParse      = "parse_error"
	OutcomeDegraded   = "degraded"
	OutcomeSuperseded = "superseded"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	parseStrategy      *prometheus.CounterVec
	sessionsActive     prometheus.Gauge
	sessionsCompleted  prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New creates the collectors and registers them, with the Go runtime and
// process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Model generation calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Latency of model generation calls.",
			Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16, 32},
		}, []string{"kind"}),
		parseStrategy: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_strategy_total",
			Help:      "Which JSON extraction strategy matched model output.",
		}, []string{"kind", "strategy"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently held in memory.",
		}),
		sessionsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Sessions that reached the complete step.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		}, []string{"route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.generations,
		m.generationDuration,
		m.parseStrategy,
		m.sessionsActive,
		m.sessionsCompleted,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveGeneration records one generation call.
func (m *Metrics) ObserveGeneration(kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(kind, outcome).Inc()
	m.generationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveStrategy records which extraction strategy matched.
func (m *Metrics) ObserveStrategy(kind, strategy string) {
	if m == nil {
		return
	}
	m.parseStrategy.WithLabelValues(kind, strategy).Inc()
}

// CountSuperseded records a suggestion result dropped as stale.
func (m *Metrics) CountSuperseded() {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(KindSuggestion, OutcomeSuperseded).Inc()
}

// SessionOpened increments the active session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionClosed decrements the active session gauge.
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// SessionCompleted counts a session reaching the complete step.
func (m *Metrics) SessionCompleted() {
	if m == nil {
		return
	}
	m.sessionsCompleted.Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
