// Package metrics wires Prometheus instrumentation across every component.
// Spec.md's Non-goals do not exclude observability; this ambient concern is
// carried the way the teacher repo carries it (pkg/metrics), just scoped to
// this module's components instead of the teacher's blockchain services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector this module registers.
var Registry = prometheus.NewRegistry()

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regulens", Subsystem: "http", Name: "requests_total",
		Help: "Total HTTP requests handled by the registry.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "regulens", Subsystem: "http", Name: "request_duration_seconds",
		Help:    "HTTP request duration.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	ScrapeCyclesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regulens", Subsystem: "monitor", Name: "scrape_cycles_total",
		Help: "Total regulatory-source scrape cycles, by outcome.",
	}, []string{"source_id", "outcome"})

	SourceQuarantined = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "regulens", Subsystem: "monitor", Name: "source_quarantined",
		Help: "1 if a regulatory source is currently quarantined, else 0.",
	}, []string{"source_id"})

	PatternDataPoints = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "regulens", Subsystem: "pattern", Name: "data_points_total",
		Help: "Total PatternDataPoints ingested.",
	})

	PatternsDiscovered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regulens", Subsystem: "pattern", Name: "patterns_discovered_total",
		Help: "Total significant patterns discovered, by kind.",
	}, []string{"kind"})

	FeedbackSubmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "regulens", Subsystem: "feedback", Name: "submitted_total",
		Help: "Total feedback items submitted, by kind.",
	}, []string{"kind"})

	ModelsUpdated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "regulens", Subsystem: "feedback", Name: "models_updated_total",
		Help: "Total learning-model updates applied.",
	})
)

func init() {
	Registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration,
		ScrapeCyclesTotal, SourceQuarantined,
		PatternDataPoints, PatternsDiscovered,
		FeedbackSubmitted, ModelsUpdated,
	)
}

// Handler exposes the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one request's outcome.
func ObserveHTTP(method, route, status string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
