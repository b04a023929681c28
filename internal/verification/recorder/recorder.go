// Package recorder persists the outcome of one provider invocation attempt.
// Recording a result never changes the authentication's status; that is the
// lifecycle manager's job.
package recorder

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"veriflow/internal/audit"
	verificationmetrics "veriflow/internal/verification/metrics"
	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/sentinel"
	"veriflow/pkg/requestcontext"
)

// ResultStore is the persistence surface the recorder needs.
type ResultStore interface {
	Create(ctx context.Context, result *models.VerificationResult) error
	ListByAuthentication(ctx context.Context, authID id.AuthenticationID) ([]*models.VerificationResult, error)
}

// ReservationStore claims request ids before persistence. Optional; the
// result store's unique constraint is authoritative either way.
type ReservationStore interface {
	Claim(ctx context.Context, requestID string) error
	Release(ctx context.Context, requestID string) error
}

// AuditPublisher records result writes.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RecordParams carries one provider invocation outcome.
type RecordParams struct {
	AuthenticationID id.AuthenticationID
	ProviderID       id.ProviderID
	ProviderCode     string
	RequestID        string
	Success          bool
	Confidence       *float64
	ResponseData     map[string]string
	ErrorCode        string
	ErrorMessage     string
	ProcessingTimeMs int64
}

// Recorder persists immutable verification results.
type Recorder struct {
	results        ResultStore
	reservations   ReservationStore
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *verificationmetrics.Metrics
}

type Option func(r *Recorder)

func WithReservationStore(store ReservationStore) Option {
	return func(r *Recorder) {
		r.reservations = store
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Recorder) {
		r.auditPublisher = publisher
	}
}

func WithMetrics(m *verificationmetrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New constructs a Recorder.
func New(results ResultStore, opts ...Option) *Recorder {
	r := &Recorder{results: results}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record validates and persists one verification result. A reused request id
// fails with a duplicate-request error and leaves the original result
// untouched; this indicates an integration bug upstream, so it is logged
// loudly rather than swallowed.
func (r *Recorder) Record(ctx context.Context, params RecordParams) (*models.VerificationResult, error) {
	now := requestcontext.Now(ctx)

	result, err := models.NewVerificationResult(
		id.ResultID(uuid.New()),
		params.AuthenticationID,
		params.ProviderID,
		params.RequestID,
		params.Success,
		params.Confidence,
		params.ResponseData,
		params.ErrorCode,
		params.ErrorMessage,
		params.ProcessingTimeMs,
		now,
	)
	if err != nil {
		return nil, err
	}

	if r.reservations != nil {
		if err := r.reservations.Claim(ctx, result.RequestID); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return nil, r.duplicate(ctx, result.RequestID)
			}
			// Reservation store failure is not fatal; the unique index
			// below still enforces idempotency.
			if r.logger != nil {
				r.logger.WarnContext(ctx, "request id reservation failed",
					"request_id", result.RequestID,
					"error", err,
				)
			}
		}
	}

	if err := r.results.Create(ctx, result); err != nil {
		if r.reservations != nil {
			_ = r.reservations.Release(ctx, result.RequestID)
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, r.duplicate(ctx, result.RequestID)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification result")
	}

	r.emitAudit(ctx, result, params.ProviderCode)
	r.metrics.IncrementResultRecorded(params.ProviderCode, result.Success)
	return result, nil
}

// ListByAuthentication returns a request's recorded results, oldest first.
func (r *Recorder) ListByAuthentication(ctx context.Context, authID id.AuthenticationID) ([]*models.VerificationResult, error) {
	results, err := r.results.ListByAuthentication(ctx, authID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list verification results")
	}
	return results, nil
}

func (r *Recorder) duplicate(ctx context.Context, requestID string) error {
	if r.logger != nil {
		r.logger.ErrorContext(ctx, "duplicate result request id",
			"request_id", requestID,
		)
	}
	r.metrics.IncrementDuplicateRequest()
	return dErrors.Newf(dErrors.CodeDuplicateRequest, "request id %q has already been used", requestID)
}

func (r *Recorder) emitAudit(ctx context.Context, result *models.VerificationResult, providerCode string) {
	if r.auditPublisher == nil {
		return
	}
	decision := "failure"
	if result.Success {
		decision = "success"
	}
	err := r.auditPublisher.Emit(ctx, audit.Event{
		SubjectID:        requestcontext.SubjectID(ctx),
		Action:           audit.EventResultRecorded,
		AuthenticationID: result.AuthenticationID.String(),
		ProviderCode:     providerCode,
		Decision:         decision,
		RequestID:        requestcontext.RequestID(ctx),
	})
	if err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "failed to emit audit event",
			"action", audit.EventResultRecorded,
			"error", err,
		)
	}
}
