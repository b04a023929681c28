// Package result persists verification results. Results are append-only;
// the request-id uniqueness constraint lives here.
package result

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrAlreadyUsed when the request-id uniqueness constraint is violated
// - Return ErrNotFound when the requested result does not exist
// - Return nil for successful operations

// InMemory stores verification results in memory for tests and single-node
// deployments.
type InMemory struct {
	mu          sync.Mutex
	results     map[id.ResultID]*models.VerificationResult
	byRequestID map[string]id.ResultID
}

// NewInMemory constructs an empty in-memory result store.
func NewInMemory() *InMemory {
	return &InMemory{
		results:     make(map[id.ResultID]*models.VerificationResult),
		byRequestID: make(map[string]id.ResultID),
	}
}

// Create persists a result if its request id has not been used. The check and
// insert happen under one lock so concurrent retries cannot both succeed.
func (s *InMemory) Create(_ context.Context, result *models.VerificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, used := s.byRequestID[result.RequestID]; used {
		return fmt.Errorf("request id %q: %w", result.RequestID, sentinel.ErrAlreadyUsed)
	}
	s.results[result.ID] = result
	s.byRequestID[result.RequestID] = result.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, resultID id.ResultID) (*models.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.results[resultID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("verification result not found: %w", sentinel.ErrNotFound)
}

// ListByAuthentication returns a request's results ordered by creation time
// ascending, the order the attempts happened in.
func (s *InMemory) ListByAuthentication(_ context.Context, authID id.AuthenticationID) ([]*models.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.VerificationResult
	for _, r := range s.results {
		if r.AuthenticationID == authID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Invalidate marks a result as logically deleted.
func (s *InMemory) Invalidate(_ context.Context, resultID id.ResultID) (*models.VerificationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.results[resultID]
	if !ok {
		return nil, fmt.Errorf("verification result not found: %w", sentinel.ErrNotFound)
	}
	if err := r.CanInvalidate(); err != nil {
		return nil, err
	}
	r.ApplyInvalidation()
	return r, nil
}
