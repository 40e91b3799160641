// Package metrics exposes Prometheus metrics for statement conversions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "statement_converter"

// Metrics holds the application collectors on a private registry, so several
// instances (e.g. in tests) never collide.
type Metrics struct {
	Registry *prometheus.Registry

	conversions        *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	tokens             *prometheus.CounterVec
	jobs               *prometheus.CounterVec
	requests           *prometheus.CounterVec
	extractions        *prometheus.CounterVec
}

// New registers all collectors in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Model conversions by outcome.",
			},
			[]string{"outcome"},
		),
		conversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Duration of model conversions.",
				Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"outcome"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_tokens_total",
				Help:      "Model tokens consumed.",
			},
			[]string{"type"},
		),
		jobs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Finished conversion jobs by status.",
			},
			[]string{"status"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by method and status code.",
			},
			[]string{"method", "code"},
		),
		extractions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "extractions_total",
				Help:      "PDF text extractions by outcome.",
			},
			[]string{"outcome"},
		),
	}
}

// ObserveConversion records one conversion attempt.
func (m *Metrics) ObserveConversion(outcome string, elapsed time.Duration) {
	m.conversions.WithLabelValues(outcome).Inc()
	m.conversionDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// AddTokens records prompt and response token usage.
func (m *Metrics) AddTokens(prompt, response int) {
	m.tokens.WithLabelValues("prompt").Add(float64(prompt))
	m.tokens.WithLabelValues("response").Add(float64(response))
}

// IncrJob counts a job reaching a terminal status.
func (m *Metrics) IncrJob(status string) {
	m.jobs.WithLabelValues(status).Inc()
}

// IncrExtraction counts an extraction outcome, e.g. "ok" or "encrypted".
func (m *Metrics) IncrExtraction(outcome string) {
	m.extractions.WithLabelValues(outcome).Inc()
}

// IncrRequest counts one served HTTP request.
func (m *Metrics) IncrRequest(method string, code int) {
	m.requests.WithLabelValues(method, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
