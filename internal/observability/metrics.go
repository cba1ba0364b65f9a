package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	apiErrorsTotal           *prometheus.CounterVec
	assessmentEventsTotal    *prometheus.CounterVec
	assessmentFallbacksTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used for API observability.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geometria_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geometria_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geometria_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		assessmentEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "geometria_assessment_events_published_total",
			Help: "Terminal assessment events fanned out to brokers, by status.",
		}, []string{"status"})

		assessmentFallbacksTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "geometria_assessment_fallbacks_total",
			Help: "Assessments completed with fallback feedback after an unparseable model reply.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			assessmentEventsTotal,
			assessmentFallbacksTotal,
		)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// AssessmentEventsPublished exposes the counter for published terminal
// assessment events.
func AssessmentEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return assessmentEventsTotal
}

// AssessmentFallbacks exposes the counter for fallback-feedback completions.
func AssessmentFallbacks() prometheus.Counter {
	RegisterMetrics()
	return assessmentFallbacksTotal
}
