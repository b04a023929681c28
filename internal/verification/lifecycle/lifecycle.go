// Package lifecycle owns the authentication request state machine. All
// status changes flow through the store's Execute operation so validation and
// mutation happen under one row lock; racing transition attempts lose cleanly
// with an invalid-transition error instead of overwriting each other.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veriflow/internal/audit"
	verificationmetrics "veriflow/internal/verification/metrics"
	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/sentinel"
	"veriflow/pkg/requestcontext"
)

// RequestStore is the persistence surface the lifecycle manager needs.
type RequestStore interface {
	Create(ctx context.Context, request *models.AuthenticationRequest) error
	FindByID(ctx context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error)
	ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.AuthenticationRequest, error)
	FindStuckProcessing(ctx context.Context, cutoff time.Time) ([]*models.AuthenticationRequest, error)
	Execute(ctx context.Context, authID id.AuthenticationID,
		validate func(*models.AuthenticationRequest) error,
		mutate func(*models.AuthenticationRequest)) (*models.AuthenticationRequest, error)
}

// AuditPublisher records lifecycle decisions.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// ApprovalParams carries the payload attached when approving a request.
type ApprovalParams struct {
	ResultSummary   map[string]string
	ProviderSummary map[string]string
	// ExpiresIn sets the approval validity window. Zero means the
	// approval never expires.
	ExpiresIn time.Duration
}

// RejectionParams carries the payload attached when rejecting a request.
type RejectionParams struct {
	Reason          string
	ResultSummary   map[string]string
	ProviderSummary map[string]string
}

// Manager applies authentication request state transitions.
type Manager struct {
	requests       RequestStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *verificationmetrics.Metrics
}

type Option func(m *Manager)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(m *Manager) {
		m.auditPublisher = publisher
	}
}

func WithMetrics(metrics *verificationmetrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// New constructs a Manager.
func New(requests RequestStore, opts ...Option) *Manager {
	m := &Manager{requests: requests}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create persists a freshly constructed pending request.
func (m *Manager) Create(ctx context.Context, request *models.AuthenticationRequest) error {
	if err := m.requests.Create(ctx, request); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create authentication request")
	}
	m.metrics.IncrementTransition(string(models.StatusPending))
	return nil
}

// Get returns an active request by id. Invalidated records read as not found.
func (m *Manager) Get(ctx context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error) {
	request, err := m.requests.FindByID(ctx, authID)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	if request.State == models.RecordInvalidated {
		return nil, dErrors.New(dErrors.CodeNotFound, "authentication not found")
	}
	return request, nil
}

// ListBySubject returns a subject's requests, newest first.
func (m *Manager) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.AuthenticationRequest, error) {
	requests, err := m.requests.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list authentication requests")
	}
	return requests, nil
}

// FindStuckProcessing returns processing requests not updated since cutoff.
func (m *Manager) FindStuckProcessing(ctx context.Context, cutoff time.Time) ([]*models.AuthenticationRequest, error) {
	requests, err := m.requests.FindStuckProcessing(ctx, cutoff)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to find stuck requests")
	}
	return requests, nil
}

// StartProcessing moves a pending request into processing.
func (m *Manager) StartProcessing(ctx context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := m.requests.Execute(ctx, authID,
		func(r *models.AuthenticationRequest) error {
			return r.CanStartProcessing()
		},
		func(r *models.AuthenticationRequest) {
			r.ApplyStartProcessing(now)
		},
	)
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	m.metrics.IncrementTransition(string(models.StatusProcessing))
	return request, nil
}

// Approve moves a processing request to approved, attaching summaries and the
// optional expiry window. The caller decides whether the evidence justifies
// approval; the manager only enforces that the edge is legal.
func (m *Manager) Approve(ctx context.Context, authID id.AuthenticationID, params ApprovalParams) (*models.AuthenticationRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := m.requests.Execute(ctx, authID,
		func(r *models.AuthenticationRequest) error {
			return r.CanApprove()
		},
		func(r *models.AuthenticationRequest) {
			r.ApplyApproval(params.ResultSummary, params.ProviderSummary, params.ExpiresIn, now)
		},
	)
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	m.logDecision(ctx, request, audit.EventAuthenticationApproved, "")
	m.metrics.IncrementTransition(string(models.StatusApproved))
	return request, nil
}

// Reject moves a pending or processing request to rejected with a reason.
func (m *Manager) Reject(ctx context.Context, authID id.AuthenticationID, params RejectionParams) (*models.AuthenticationRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := m.requests.Execute(ctx, authID,
		func(r *models.AuthenticationRequest) error {
			return r.CanReject(params.Reason)
		},
		func(r *models.AuthenticationRequest) {
			r.ApplyRejection(params.Reason, params.ResultSummary, params.ProviderSummary, now)
		},
	)
	if err != nil {
		return nil, wrapRequestErr(err)
	}

	m.logDecision(ctx, request, audit.EventAuthenticationRejected, request.Reason)
	m.metrics.IncrementTransition(string(models.StatusRejected))
	return request, nil
}

// Invalidate marks a request as logically deleted.
func (m *Manager) Invalidate(ctx context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error) {
	now := requestcontext.Now(ctx)
	request, err := m.requests.Execute(ctx, authID,
		func(r *models.AuthenticationRequest) error {
			if err := r.CanInvalidate(); err != nil {
				return dErrors.New(dErrors.CodeConflict, "authentication is already invalidated")
			}
			return nil
		},
		func(r *models.AuthenticationRequest) {
			r.ApplyInvalidation(now)
		},
	)
	if err != nil {
		return nil, wrapRequestErr(err)
	}
	return request, nil
}

func (m *Manager) logDecision(ctx context.Context, request *models.AuthenticationRequest, action, reason string) {
	if m.logger != nil {
		m.logger.InfoContext(ctx, action,
			"authentication_id", request.ID,
			"subject_id", request.SubjectID,
			"method", request.Method,
			"log_type", "audit",
		)
	}
	if m.auditPublisher == nil {
		return
	}
	err := m.auditPublisher.Emit(ctx, audit.Event{
		SubjectID:        request.SubjectID,
		Action:           action,
		AuthenticationID: request.ID.String(),
		Method:           string(request.Method),
		Decision:         string(request.Status),
		Reason:           reason,
		RequestID:        requestcontext.RequestID(ctx),
		ClientIP:         requestcontext.ClientIP(ctx),
		DeviceName:       requestcontext.DeviceName(ctx),
	})
	if err != nil && m.logger != nil {
		m.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action,
			"error", err,
		)
	}
}

func wrapRequestErr(err error) error {
	var domainErr *dErrors.Error
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "authentication not found")
	case errors.As(err, &domainErr):
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "authentication store failure")
	}
}
