// Package selector chooses the provider used for a verification attempt.
package selector

import (
	"context"

	"veriflow/internal/provider/metrics"
	"veriflow/internal/provider/models"
	"veriflow/internal/provider/registry"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// Selector picks exactly one provider for a verification method. The choice
// is deterministic: given identical registry state, repeated calls return the
// same provider. No load balancing, no health checks.
type Selector struct {
	registry *registry.Registry
	metrics  *metrics.Metrics
}

// New constructs a Selector. Metrics may be nil.
func New(registry *registry.Registry, m *metrics.Metrics) *Selector {
	return &Selector{registry: registry, metrics: m}
}

// SelectBest returns the highest-priority selectable provider supporting the
// method; ties resolve to the earliest-created provider.
//
// Errors: CodeInvalidInput for an unsupported method; CodeProviderUnavailable
// when no selectable provider supports the method.
func (s *Selector) SelectBest(ctx context.Context, method id.VerificationMethod) (*models.Provider, error) {
	candidates, err := s.registry.FindByMethod(ctx, method)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.metrics.IncrementSelection(method.String(), "unavailable")
		return nil, dErrors.Newf(dErrors.CodeProviderUnavailable, "no active provider supports %s", method)
	}

	// The registry guarantees priority-descending, created-ascending order,
	// so the first candidate is the selection.
	best := candidates[0]
	s.metrics.IncrementSelection(method.String(), "selected")
	return best, nil
}
