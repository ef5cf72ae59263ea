package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	apiRequestsTotal          *prometheus.CounterVec
	apiLatencySeconds         *prometheus.HistogramVec
	apiErrorsTotal            *prometheus.CounterVec
	submissionTransitions     *prometheus.CounterVec
	submissionAutoSubmitted   prometheus.Counter
	submissionEventsPublished *prometheus.CounterVec
	websocketClientsActive    prometheus.Gauge
	gradebookCacheLookups     *prometheus.CounterVec
	authThrottledTotal        prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		submissionTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_transitions_total",
			Help: "Submission lifecycle writes grouped by action.",
		}, []string{"action"})

		submissionAutoSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "submission_auto_submitted_total",
			Help: "Drafts moved to SUBMITTED after their deadline passed.",
		})

		submissionEventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_events_published_total",
			Help: "Submission events delivered to local subscribers grouped by origin.",
		}, []string{"origin"})

		websocketClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "submission_ws_clients_active",
			Help: "Currently connected submission feed websocket clients.",
		})

		gradebookCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_cache_lookups_total",
			Help: "Gradebook cache lookups grouped by result.",
		}, []string{"result"})

		authThrottledTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_throttled_total",
			Help: "Authentication attempts rejected by the attempt throttle.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			submissionTransitions,
			submissionAutoSubmitted,
			submissionEventsPublished,
			websocketClientsActive,
			gradebookCacheLookups,
			authThrottledTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// SubmissionTransitions counts lifecycle writes by action.
func SubmissionTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionTransitions
}

// SubmissionAutoSubmitted counts drafts submitted by the deadline sweep.
func SubmissionAutoSubmitted() prometheus.Counter {
	RegisterMetrics()
	return submissionAutoSubmitted
}

// SubmissionEventsPublished counts events fanned out to local subscribers.
func SubmissionEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionEventsPublished
}

// WebsocketClientsActive tracks open submission feed connections.
func WebsocketClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return websocketClientsActive
}

// GradebookCacheLookups counts cache hits and misses.
func GradebookCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return gradebookCacheLookups
}

// AuthThrottled counts requests refused by the auth attempt throttle.
func AuthThrottled() prometheus.Counter {
	RegisterMetrics()
	return authThrottledTotal
}
