package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"veriflow/internal/provider/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this pattern:
// - Return ErrNotFound when the requested provider does not exist
// - Return ErrConflict when the code uniqueness constraint is violated
// - Return nil for successful operations

// InMemory stores providers in memory for tests and single-node deployments.
type InMemory struct {
	mu        sync.RWMutex
	providers map[id.ProviderID]*models.Provider
	byCode    map[string]id.ProviderID
}

// NewInMemory constructs an empty in-memory provider store.
func NewInMemory() *InMemory {
	return &InMemory{
		providers: make(map[id.ProviderID]*models.Provider),
		byCode:    make(map[string]id.ProviderID),
	}
}

// Create persists a new provider if its code is not already taken.
func (s *InMemory) Create(_ context.Context, provider *models.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byCode[provider.Code]; taken {
		return fmt.Errorf("provider code %q: %w", provider.Code, sentinel.ErrConflict)
	}
	s.providers[provider.ID] = provider
	s.byCode[provider.Code] = provider.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, providerID id.ProviderID) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.providers[providerID]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("provider not found: %w", sentinel.ErrNotFound)
}

// FindByCode looks a provider up by its exact, case-sensitive code.
func (s *InMemory) FindByCode(_ context.Context, code string) (*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if providerID, ok := s.byCode[code]; ok {
		return s.providers[providerID], nil
	}
	return nil, fmt.Errorf("provider not found: %w", sentinel.ErrNotFound)
}

// FindActive returns all selectable providers ordered by priority descending,
// then creation time ascending.
func (s *InMemory) FindActive(_ context.Context) ([]*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Provider
	for _, p := range s.providers {
		if p.IsSelectable() {
			out = append(out, p)
		}
	}
	sortProviders(out)
	return out, nil
}

// FindByMethod returns selectable providers supporting the method, in the
// same ordering as FindActive.
func (s *InMemory) FindByMethod(_ context.Context, method id.VerificationMethod) ([]*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Provider
	for _, p := range s.providers {
		if p.IsSelectable() && p.Supports(method) {
			out = append(out, p)
		}
	}
	sortProviders(out)
	return out, nil
}

// List returns every provider regardless of state, for the admin surface.
func (s *InMemory) List(_ context.Context) ([]*models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Provider, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p)
	}
	sortProviders(out)
	return out, nil
}

// Execute atomically validates and mutates a provider while holding the store
// lock, preventing lost updates from concurrent admin operations.
func (s *InMemory) Execute(
	_ context.Context,
	providerID id.ProviderID,
	validate func(*models.Provider) error,
	mutate func(*models.Provider),
) (*models.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("provider not found: %w", sentinel.ErrNotFound)
	}
	if err := validate(p); err != nil {
		return nil, err
	}
	mutate(p)
	return p, nil
}

// sortProviders orders by priority descending with creation time ascending as
// the tie-break, the ordering the selector depends on.
func sortProviders(providers []*models.Provider) {
	sort.SliceStable(providers, func(i, j int) bool {
		if providers[i].Priority != providers[j].Priority {
			return providers[i].Priority > providers[j].Priority
		}
		return providers[i].CreatedAt.Before(providers[j].CreatedAt)
	})
}
