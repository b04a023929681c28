// Package metrics provides observability for the verification module.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for authentication submissions, result
// recording and lifecycle transitions.
type Metrics struct {
	// Submissions by method and final status
	Submissions *prometheus.CounterVec

	// Results recorded by provider code and outcome (success, failure)
	ResultsRecorded *prometheus.CounterVec

	// Duplicate request-id rejections
	DuplicateRequests prometheus.Counter

	// Lifecycle transitions by target status
	Transitions *prometheus.CounterVec

	// Stuck processing requests force-rejected by the sweeper
	SweptRequests prometheus.Counter

	// Provider-reported processing time
	ProviderLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all verification module metrics
// registered.
func New() *Metrics {
	return &Metrics{
		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_authentication_submissions_total",
			Help: "Total authentication submissions by method and final status",
		}, []string{"method", "status"}),

		ResultsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_verification_results_total",
			Help: "Total verification results recorded by provider and outcome",
		}, []string{"provider", "outcome"}),

		DuplicateRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veriflow_duplicate_request_ids_total",
			Help: "Total result writes rejected for reusing a request id",
		}),

		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_lifecycle_transitions_total",
			Help: "Total authentication lifecycle transitions by target status",
		}, []string{"to"}),

		SweptRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veriflow_stuck_requests_swept_total",
			Help: "Total stuck processing requests force-rejected by the sweeper",
		}),

		ProviderLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veriflow_provider_latency_seconds",
			Help:    "Provider-reported processing time per invocation",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}

// IncrementSubmission records a submission's final status.
func (m *Metrics) IncrementSubmission(method, status string) {
	if m != nil {
		m.Submissions.WithLabelValues(method, status).Inc()
	}
}

// IncrementResultRecorded records one persisted verification result.
func (m *Metrics) IncrementResultRecorded(provider string, success bool) {
	if m != nil {
		outcome := "failure"
		if success {
			outcome = "success"
		}
		m.ResultsRecorded.WithLabelValues(provider, outcome).Inc()
	}
}

// IncrementDuplicateRequest records a rejected duplicate request id.
func (m *Metrics) IncrementDuplicateRequest() {
	if m != nil {
		m.DuplicateRequests.Inc()
	}
}

// IncrementTransition records a lifecycle transition.
func (m *Metrics) IncrementTransition(to string) {
	if m != nil {
		m.Transitions.WithLabelValues(to).Inc()
	}
}

// IncrementSwept records a force-rejected stuck request.
func (m *Metrics) IncrementSwept() {
	if m != nil {
		m.SweptRequests.Inc()
	}
}

// ObserveProviderLatency records a provider's reported processing time.
func (m *Metrics) ObserveProviderLatency(provider string, d time.Duration) {
	if m != nil {
		m.ProviderLatency.WithLabelValues(provider).Observe(d.Seconds())
	}
}
