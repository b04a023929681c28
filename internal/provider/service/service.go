// Package service implements provider administration: registering verification
// providers and driving their activation lifecycle.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"veriflow/internal/audit"
	providermetrics "veriflow/internal/provider/metrics"
	"veriflow/internal/provider/models"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/sentinel"
	"veriflow/pkg/requestcontext"
	"veriflow/pkg/secrets"
)

// Store is the provider persistence surface the admin service needs.
type Store interface {
	Create(ctx context.Context, provider *models.Provider) error
	FindByID(ctx context.Context, providerID id.ProviderID) (*models.Provider, error)
	FindByCode(ctx context.Context, code string) (*models.Provider, error)
	List(ctx context.Context) ([]*models.Provider, error)
	Execute(ctx context.Context, providerID id.ProviderID,
		validate func(*models.Provider) error,
		mutate func(*models.Provider)) (*models.Provider, error)
}

// AuditPublisher records admin actions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RegisterParams carries the fields needed to register a provider.
type RegisterParams struct {
	Name             string
	Code             string
	Type             id.ProviderType
	SupportedMethods []id.VerificationMethod
	Endpoint         string
	Settings         map[string]string
	Priority         int
}

// Service orchestrates provider administration.
type Service struct {
	providers      Store
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *providermetrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *providermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(providers Store, opts ...Option) *Service {
	s := &Service{providers: providers}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a provider in active status. The returned cleartext secret
// is the callback credential and is only available at registration time.
func (s *Service) Register(ctx context.Context, params RegisterParams) (*models.Provider, string, error) {
	now := requestcontext.Now(ctx)

	provider, err := models.NewProvider(
		id.ProviderID(uuid.New()),
		params.Name,
		params.Code,
		params.Type,
		params.SupportedMethods,
		params.Endpoint,
		params.Settings,
		params.Priority,
		now,
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, "", dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, "", err
	}

	secret, err := secrets.Generate()
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate callback secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash callback secret")
	}
	provider.SetCallbackSecretHash(hash, now)

	if err := s.providers.Create(ctx, provider); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "provider code must be unique")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create provider")
	}

	s.emitAudit(ctx, audit.EventProviderRegistered, provider)
	s.metrics.IncrementRegistered()
	return provider, secret, nil
}

// Get returns a provider by id.
func (s *Service) Get(ctx context.Context, providerID id.ProviderID) (*models.Provider, error) {
	if err := requireProviderID(providerID); err != nil {
		return nil, err
	}
	provider, err := s.providers.FindByID(ctx, providerID)
	if err != nil {
		return nil, wrapProviderErr(err)
	}
	return provider, nil
}

// GetByCode returns a provider by its unique code.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Provider, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "provider code is required")
	}
	provider, err := s.providers.FindByCode(ctx, code)
	if err != nil {
		return nil, wrapProviderErr(err)
	}
	return provider, nil
}

// List returns all providers, including inactive and invalidated ones.
func (s *Service) List(ctx context.Context) ([]*models.Provider, error) {
	providers, err := s.providers.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list providers")
	}
	return providers, nil
}

// Deactivate transitions a provider to inactive status. Inactive providers are
// skipped by selection but keep their historical results valid.
//
// Uses the Execute callback pattern for atomic validate-then-mutate.
func (s *Service) Deactivate(ctx context.Context, providerID id.ProviderID) (*models.Provider, error) {
	if err := requireProviderID(providerID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	provider, err := s.providers.Execute(ctx, providerID,
		func(p *models.Provider) error {
			if err := p.CanDeactivate(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, err.Error())
				}
				return err
			}
			return nil
		},
		func(p *models.Provider) {
			p.ApplyDeactivation(now)
		},
	)
	if err != nil {
		return nil, wrapProviderErr(err)
	}

	s.emitAudit(ctx, audit.EventProviderDeactivated, provider)
	s.metrics.IncrementStateChange("deactivate")
	return provider, nil
}

// Activate transitions an inactive provider back to active status.
func (s *Service) Activate(ctx context.Context, providerID id.ProviderID) (*models.Provider, error) {
	if err := requireProviderID(providerID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	provider, err := s.providers.Execute(ctx, providerID,
		func(p *models.Provider) error {
			if err := p.CanActivate(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, err.Error())
				}
				return err
			}
			return nil
		},
		func(p *models.Provider) {
			p.ApplyActivation(now)
		},
	)
	if err != nil {
		return nil, wrapProviderErr(err)
	}

	s.emitAudit(ctx, audit.EventProviderActivated, provider)
	s.metrics.IncrementStateChange("activate")
	return provider, nil
}

// Invalidate marks a provider's record state as invalidated. This is terminal:
// the provider can never be selected again and authentications that only hold
// results from it stop counting as approved.
func (s *Service) Invalidate(ctx context.Context, providerID id.ProviderID) (*models.Provider, error) {
	if err := requireProviderID(providerID); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	provider, err := s.providers.Execute(ctx, providerID,
		func(p *models.Provider) error {
			if err := p.CanInvalidate(); err != nil {
				if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					return dErrors.New(dErrors.CodeConflict, err.Error())
				}
				return err
			}
			return nil
		},
		func(p *models.Provider) {
			p.ApplyInvalidation(now)
		},
	)
	if err != nil {
		return nil, wrapProviderErr(err)
	}

	s.emitAudit(ctx, audit.EventProviderInvalidated, provider)
	s.metrics.IncrementStateChange("invalidate")
	return provider, nil
}

// RotateCallbackSecret replaces the provider's callback credential.
// Returns the new cleartext secret, only available at rotation time.
func (s *Service) RotateCallbackSecret(ctx context.Context, providerID id.ProviderID) (string, error) {
	if err := requireProviderID(providerID); err != nil {
		return "", err
	}

	secret, err := secrets.Generate()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate callback secret")
	}
	hash, err := secrets.Hash(secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash callback secret")
	}

	now := requestcontext.Now(ctx)
	provider, err := s.providers.Execute(ctx, providerID,
		func(p *models.Provider) error {
			if p.State == models.RecordInvalidated {
				return dErrors.New(dErrors.CodeConflict, "provider is invalidated")
			}
			return nil
		},
		func(p *models.Provider) {
			p.SetCallbackSecretHash(hash, now)
		},
	)
	if err != nil {
		return "", wrapProviderErr(err)
	}

	s.emitAudit(ctx, audit.EventProviderSecretRotated, provider)
	s.metrics.IncrementStateChange("rotate_secret")
	return secret, nil
}

func (s *Service) emitAudit(ctx context.Context, action string, provider *models.Provider) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, action,
			"provider_code", provider.Code,
			"log_type", "audit",
		)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Action:       action,
		ProviderCode: provider.Code,
		RequestID:    requestcontext.RequestID(ctx),
		ClientIP:     requestcontext.ClientIP(ctx),
		DeviceName:   requestcontext.DeviceName(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"error", err,
		)
	}
}

func requireProviderID(providerID id.ProviderID) error {
	if uuid.UUID(providerID) == uuid.Nil {
		return dErrors.New(dErrors.CodeValidation, "provider id is required")
	}
	return nil
}

func wrapProviderErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "provider not found")
	case errors.As(err, &domainErr):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "provider store failure")
	}
}
