// Package telemetry exposes Prometheus metrics for the search pipeline.
//
// Every failure the pipeline masks (safety degradation, generator fallback,
// corrupt cache entries) is counted here so it stays visible without
// reaching the caller.
//
// A nil *Metrics is valid and records nothing.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reelvibe"

// Safety check outcomes.
const (
	SafetyClean    = "clean"
	SafetyFlagged  = "flagged"
	SafetyDegraded = "degraded"
)

// Generation outcomes.
const (
	GenerationOK       = "ok"
	GenerationRepaired = "repaired"
	GenerationFailed   = "failed"
	GenerationError    = "error"
	GenerationCacheHit = "cache_hit"
	GenerationInvalid  = "cache_invalid"
)

// Explanation outcomes.
const (
	ExplanationGenerated = "generated"
	ExplanationFallback  = "fallback"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	intents        *prometheus.CounterVec
	safetyChecks   *prometheus.CounterVec
	generation     *prometheus.CounterVec
	resolutions    *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	searchErrors   *prometheus.CounterVec
	explanations   *prometheus.CounterVec
}

// New creates Metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(reg)
}

// NewForTest creates Metrics on a bare registry.
func NewForTest() *Metrics {
	return newMetrics(prometheus.NewRegistry())
}

func newMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		intents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Classified queries by intent",
		}, []string{"intent"}),
		safetyChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "safety_checks_total",
			Help:      "Safety check outcomes (clean, flagged, degraded)",
		}, []string{"outcome"}),
		generation: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_total",
			Help:      "Title generation outcomes",
		}, []string{"outcome"}),
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Candidate resolutions by match method",
		}, []string{"method"}),
		searchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"regime"}),
		searchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_errors_total",
			Help:      "Searches that failed with an infrastructure error, by code",
		}, []string{"code"}),
		explanations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "explanations_total",
			Help:      "Match explanations by outcome (generated, fallback)",
		}, []string{"outcome"}),
	}
}

// RecordIntent counts a classified query.
func (m *Metrics) RecordIntent(intent string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent).Inc()
}

// RecordSafety counts a safety check outcome.
func (m *Metrics) RecordSafety(outcome string) {
	if m == nil {
		return
	}
	m.safetyChecks.WithLabelValues(outcome).Inc()
}

// RecordGeneration counts a generation outcome.
func (m *Metrics) RecordGeneration(outcome string) {
	if m == nil {
		return
	}
	m.generation.WithLabelValues(outcome).Inc()
}

// RecordResolution counts a resolved candidate.
func (m *Metrics) RecordResolution(method string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(method).Inc()
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(regime string, d time.Duration) {
	if m == nil {
		return
	}
	m.searchDuration.WithLabelValues(regime).Observe(d.Seconds())
}

// RecordSearchError counts a failed search.
func (m *Metrics) RecordSearchError(code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.searchErrors.WithLabelValues(code).Inc()
}

// RecordExplanation counts an explanation outcome.
func (m *Metrics) RecordExplanation(outcome string) {
	if m == nil {
		return
	}
	m.explanations.WithLabelValues(outcome).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Counter returns the child of a labelled counter, for inspection in
// tests and diagnostics. family is one of "intents", "safety_checks",
// "generation", "resolutions", "search_errors" or "explanations".
func (m *Metrics) Counter(family, label string) prometheus.Counter {
	var vec *prometheus.CounterVec
	switch family {
	case "intents":
		vec = m.intents
	case "safety_checks":
		vec = m.safetyChecks
	case "generation":
		vec = m.generation
	case "resolutions":
		vec = m.resolutions
	case "search_errors":
		vec = m.searchErrors
	case "explanations":
		vec = m.explanations
	default:
		return nil
	}
	return vec.WithLabelValues(label)
}
