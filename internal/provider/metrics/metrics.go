package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the provider module.
type Metrics struct {
	// Provider registrations
	Registered prometheus.Counter

	// Admin state changes by action (activate, deactivate, invalidate, rotate_secret)
	StateChanges *prometheus.CounterVec

	// Selector outcomes by method and outcome (selected, unavailable)
	Selections *prometheus.CounterVec
}

// New creates a Metrics instance with all provider module metrics registered.
func New() *Metrics {
	return &Metrics{
		Registered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "veriflow_providers_registered_total",
			Help: "Total verification providers registered",
		}),

		StateChanges: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_provider_state_changes_total",
			Help: "Total provider admin state changes by action",
		}, []string{"action"}),

		Selections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "veriflow_provider_selections_total",
			Help: "Total provider selection attempts by method and outcome",
		}, []string{"method", "outcome"}),
	}
}

// IncrementRegistered records a provider registration.
func (m *Metrics) IncrementRegistered() {
	if m != nil {
		m.Registered.Inc()
	}
}

// IncrementStateChange records an admin state change.
func (m *Metrics) IncrementStateChange(action string) {
	if m != nil {
		m.StateChanges.WithLabelValues(action).Inc()
	}
}

// IncrementSelection records a selector outcome.
func (m *Metrics) IncrementSelection(method, outcome string) {
	if m != nil {
		m.Selections.WithLabelValues(method, outcome).Inc()
	}
}
