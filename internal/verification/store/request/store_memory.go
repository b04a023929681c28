// Package request persists authentication requests.
package request

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested authentication does not exist
// - Return nil for successful operations

// InMemory stores authentication requests in memory for tests and
// single-node deployments.
type InMemory struct {
	mu       sync.RWMutex
	requests map[id.AuthenticationID]*models.AuthenticationRequest
}

// NewInMemory constructs an empty in-memory request store.
func NewInMemory() *InMemory {
	return &InMemory{
		requests: make(map[id.AuthenticationID]*models.AuthenticationRequest),
	}
}

// Create persists a new authentication request.
func (s *InMemory) Create(_ context.Context, request *models.AuthenticationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[request.ID]; exists {
		return fmt.Errorf("authentication %s: %w", request.ID, sentinel.ErrConflict)
	}
	s.requests[request.ID] = request
	return nil
}

func (s *InMemory) FindByID(_ context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.requests[authID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("authentication not found: %w", sentinel.ErrNotFound)
}

// ListBySubject returns a subject's requests ordered by creation time
// descending. Invalidated records are excluded.
func (s *InMemory) ListBySubject(_ context.Context, subjectID id.SubjectID) ([]*models.AuthenticationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AuthenticationRequest
	for _, r := range s.requests {
		if r.SubjectID == subjectID && r.State == models.RecordActive {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindStuckProcessing returns active requests still in processing whose last
// update is older than the cutoff. Used by the sweeper.
func (s *InMemory) FindStuckProcessing(_ context.Context, cutoff time.Time) ([]*models.AuthenticationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.AuthenticationRequest
	for _, r := range s.requests {
		if r.State == models.RecordActive && r.Status == models.StatusProcessing && r.UpdatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// Execute atomically validates and mutates a request while holding the store
// lock, preventing lost updates when two result-recording paths race.
func (s *InMemory) Execute(
	_ context.Context,
	authID id.AuthenticationID,
	validate func(*models.AuthenticationRequest) error,
	mutate func(*models.AuthenticationRequest),
) (*models.AuthenticationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.requests[authID]
	if !ok {
		return nil, fmt.Errorf("authentication not found: %w", sentinel.ErrNotFound)
	}
	if err := validate(r); err != nil {
		return nil, err
	}
	mutate(r)
	return r, nil
}
