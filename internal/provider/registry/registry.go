// Package registry exposes read-only queries over provider reference data.
// The verification flow consumes providers exclusively through this API;
// mutation lives in the admin service.
package registry

import (
	"context"
	"errors"

	"veriflow/internal/provider/models"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/sentinel"
)

// Store is the subset of the provider store the registry needs.
type Store interface {
	FindActive(ctx context.Context) ([]*models.Provider, error)
	FindByMethod(ctx context.Context, method id.VerificationMethod) ([]*models.Provider, error)
	FindByCode(ctx context.Context, code string) (*models.Provider, error)
}

// Registry answers membership and filter queries over providers. Pure reads;
// never fails on an empty result set.
type Registry struct {
	store Store
}

// New constructs a Registry over the given store.
func New(store Store) *Registry {
	return &Registry{store: store}
}

// FindActive returns all selectable providers ordered by priority descending,
// creation time ascending. An empty slice is a valid answer.
func (r *Registry) FindActive(ctx context.Context) ([]*models.Provider, error) {
	providers, err := r.store.FindActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query active providers")
	}
	return providers, nil
}

// FindByMethod returns selectable providers supporting the method, in the
// FindActive ordering.
func (r *Registry) FindByMethod(ctx context.Context, method id.VerificationMethod) ([]*models.Provider, error) {
	if !method.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unsupported verification method %q", method)
	}
	providers, err := r.store.FindByMethod(ctx, method)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query providers by method")
	}
	return providers, nil
}

// FindByCode looks up a single provider by exact, case-sensitive code.
func (r *Registry) FindByCode(ctx context.Context, code string) (*models.Provider, error) {
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "provider code cannot be empty")
	}
	provider, err := r.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "provider %q not found", code)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to query provider by code")
	}
	return provider, nil
}
