// Package service orchestrates the end-to-end verification use cases:
// submitting an authentication, checking its status and listing history. It
// ties the provider selector, the result recorder and the lifecycle manager
// together and owns the confidence-threshold approval policy.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"veriflow/internal/audit"
	providermodels "veriflow/internal/provider/models"
	"veriflow/internal/verification/lifecycle"
	verificationmetrics "veriflow/internal/verification/metrics"
	"veriflow/internal/verification/models"
	"veriflow/internal/verification/recorder"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/requestcontext"
)

// InvokeOutcome is the contract a provider invocation returns. The transport
// used to reach the provider is the invoker's concern; the orchestrator only
// consumes this shape.
type InvokeOutcome struct {
	Success        bool
	Confidence     *float64
	ResponseData   map[string]string
	ErrorCode      string
	ErrorMessage   string
	ProcessingTime time.Duration
}

// Invoker performs the actual provider call.
type Invoker interface {
	Invoke(ctx context.Context, provider *providermodels.Provider, method id.VerificationMethod, fields map[string]string) (*InvokeOutcome, error)
}

// Selector chooses the provider for a verification method.
type Selector interface {
	SelectBest(ctx context.Context, method id.VerificationMethod) (*providermodels.Provider, error)
}

// CertificateIssuer signs approval certificates. Optional.
type CertificateIssuer interface {
	Issue(request *models.AuthenticationRequest, now time.Time) (string, error)
}

// AuditPublisher records submission events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Policy holds the orchestration-owned decision configuration.
type Policy struct {
	// ApprovalThreshold is the minimum confidence a successful result
	// needs to approve the request. Results reporting no confidence are
	// approved on the success flag alone.
	ApprovalThreshold float64
	// ApprovalTTL is how long an approval stays valid. Zero means
	// approvals never expire.
	ApprovalTTL time.Duration
}

// SubmitResult is the outcome of a submission: the final request plus a
// signed certificate when it ended approved.
type SubmitResult struct {
	Request     *models.AuthenticationRequest
	Certificate string
}

// Service implements the verification use cases.
type Service struct {
	selector       Selector
	recorder       *recorder.Recorder
	lifecycle      *lifecycle.Manager
	invoker        Invoker
	policy         Policy
	certIssuer     CertificateIssuer
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *verificationmetrics.Metrics
	tracer         trace.Tracer
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

func WithMetrics(m *verificationmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithCertificateIssuer(issuer CertificateIssuer) Option {
	return func(s *Service) {
		s.certIssuer = issuer
	}
}

// New constructs a Service.
func New(
	selector Selector,
	rec *recorder.Recorder,
	lc *lifecycle.Manager,
	invoker Invoker,
	policy Policy,
	opts ...Option,
) *Service {
	s := &Service{
		selector:  selector,
		recorder:  rec,
		lifecycle: lc,
		invoker:   invoker,
		policy:    policy,
		tracer:    otel.Tracer("veriflow/verification"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit runs one authentication end to end: validate the submitted fields,
// create the request, select a provider, invoke it, record the result and
// decide the final status. The returned request is always in a terminal
// state; availability failures come back as a rejected request, not an error.
func (s *Service) Submit(
	ctx context.Context,
	subjectID id.SubjectID,
	method id.VerificationMethod,
	fields map[string]string,
) (*SubmitResult, error) {
	// Field validation happens before anything is persisted.
	if err := models.ValidateFields(method, fields); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	request, err := models.NewAuthenticationRequest(
		id.AuthenticationID(uuid.New()), subjectID, method, fields, now,
	)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}
	if err := s.lifecycle.Create(ctx, request); err != nil {
		return nil, err
	}
	s.emitSubmitted(ctx, request)

	provider, err := s.selector.SelectBest(ctx, method)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeProviderUnavailable) {
			// Definitive synchronous failure: reject rather than retry.
			rejected, rejectErr := s.lifecycle.Reject(ctx, request.ID, lifecycle.RejectionParams{
				Reason: fmt.Sprintf("no verification provider available for method %s", method),
			})
			return s.finish(ctx, rejected, rejectErr)
		}
		return nil, err
	}

	if _, err := s.lifecycle.StartProcessing(ctx, request.ID); err != nil {
		return nil, err
	}

	outcome, invokeErr := s.invoke(ctx, provider, method, fields)
	if invokeErr != nil {
		outcome = &InvokeOutcome{
			Success:      false,
			ErrorCode:    "provider_call_failed",
			ErrorMessage: invokeErr.Error(),
		}
	}
	s.metrics.ObserveProviderLatency(provider.Code, outcome.ProcessingTime)

	result, err := s.recorder.Record(ctx, recorder.RecordParams{
		AuthenticationID: request.ID,
		ProviderID:       provider.ID,
		ProviderCode:     provider.Code,
		RequestID:        newResultRequestID(),
		Success:          outcome.Success,
		Confidence:       outcome.Confidence,
		ResponseData:     outcome.ResponseData,
		ErrorCode:        outcome.ErrorCode,
		ErrorMessage:     outcome.ErrorMessage,
		ProcessingTimeMs: outcome.ProcessingTime.Milliseconds(),
	})
	if err != nil {
		// Integrity-class failure; the request stays processing for the
		// sweeper rather than guessing a decision here.
		return nil, err
	}

	if s.approves(outcome) {
		approved, approveErr := s.lifecycle.Approve(ctx, request.ID, lifecycle.ApprovalParams{
			ResultSummary:   resultSummary(result),
			ProviderSummary: providerSummary(provider, outcome),
			ExpiresIn:       s.policy.ApprovalTTL,
		})
		return s.finish(ctx, approved, approveErr)
	}
	rejected, rejectErr := s.lifecycle.Reject(ctx, request.ID, lifecycle.RejectionParams{
		Reason:          rejectionReason(outcome),
		ResultSummary:   resultSummary(result),
		ProviderSummary: providerSummary(provider, outcome),
	})
	return s.finish(ctx, rejected, rejectErr)
}

// CheckStatus returns a request by id. Missing and invalidated records both
// read as not found. No mutation; callers apply the expiry predicates.
func (s *Service) CheckStatus(ctx context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error) {
	return s.lifecycle.Get(ctx, authID)
}

// GetHistory returns a subject's requests, newest first.
func (s *Service) GetHistory(ctx context.Context, subjectID id.SubjectID) ([]*models.AuthenticationRequest, error) {
	return s.lifecycle.ListBySubject(ctx, subjectID)
}

// ListResults returns the recorded verification results for a request.
func (s *Service) ListResults(ctx context.Context, authID id.AuthenticationID) ([]*models.VerificationResult, error) {
	if _, err := s.lifecycle.Get(ctx, authID); err != nil {
		return nil, err
	}
	return s.recorder.ListByAuthentication(ctx, authID)
}

// approves applies the confidence-threshold policy. A successful result with
// no confidence score is approved on the success flag alone.
func (s *Service) approves(outcome *InvokeOutcome) bool {
	if !outcome.Success {
		return false
	}
	if outcome.Confidence == nil {
		return true
	}
	return *outcome.Confidence >= s.policy.ApprovalThreshold
}

func (s *Service) invoke(
	ctx context.Context,
	provider *providermodels.Provider,
	method id.VerificationMethod,
	fields map[string]string,
) (*InvokeOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "provider.invoke",
		trace.WithAttributes(
			attribute.String("provider.code", provider.Code),
			attribute.String("verification.method", string(method)),
		),
	)
	defer span.End()

	outcome, err := s.invoker.Invoke(ctx, provider, method, fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider invocation failed")
		return nil, err
	}
	span.SetAttributes(attribute.Bool("verification.success", outcome.Success))
	return outcome, nil
}

// finish resolves a terminal request into the submit result, issuing a
// certificate when it ended approved.
func (s *Service) finish(ctx context.Context, request *models.AuthenticationRequest, err error) (*SubmitResult, error) {
	if err != nil {
		return nil, err
	}
	s.metrics.IncrementSubmission(string(request.Method), string(request.Status))

	out := &SubmitResult{Request: request}
	now := requestcontext.Now(ctx)
	if s.certIssuer != nil && request.IsApproved(now) {
		cert, err := s.certIssuer.Issue(request, now)
		if err != nil {
			if s.logger != nil {
				s.logger.ErrorContext(ctx, "failed to issue approval certificate",
					"authentication_id", request.ID,
					"error", err,
				)
			}
		} else {
			out.Certificate = cert
			s.emitCertificateIssued(ctx, request)
		}
	}
	return out, nil
}

func (s *Service) emitSubmitted(ctx context.Context, request *models.AuthenticationRequest) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "authentication submitted",
			"authentication_id", request.ID,
			"subject_id", request.SubjectID,
			"method", request.Method,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		SubjectID:        request.SubjectID,
		Action:           audit.EventAuthenticationSubmitted,
		AuthenticationID: request.ID.String(),
		Method:           string(request.Method),
		RequestID:        requestcontext.RequestID(ctx),
		ClientIP:         requestcontext.ClientIP(ctx),
		DeviceName:       requestcontext.DeviceName(ctx),
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", audit.EventAuthenticationSubmitted,
			"error", err,
		)
	}
}

func (s *Service) emitCertificateIssued(ctx context.Context, request *models.AuthenticationRequest) {
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		SubjectID:        request.SubjectID,
		Action:           audit.EventCertificateIssued,
		AuthenticationID: request.ID.String(),
		Method:           string(request.Method),
		RequestID:        requestcontext.RequestID(ctx),
	})
}

// newResultRequestID mints the correlation key for one provider invocation
// attempt. Every retry gets a fresh one.
func newResultRequestID() string {
	return "REQ_" + uuid.NewString()
}

func resultSummary(result *models.VerificationResult) map[string]string {
	summary := map[string]string{
		"result_id":  result.ID.String(),
		"request_id": result.RequestID,
		"success":    fmt.Sprintf("%t", result.Success),
	}
	if result.Confidence != nil {
		summary["confidence"] = fmt.Sprintf("%.2f", *result.Confidence)
	}
	return summary
}

func providerSummary(provider *providermodels.Provider, outcome *InvokeOutcome) map[string]string {
	summary := map[string]string{
		"provider_code": provider.Code,
		"provider_name": provider.Name,
		"provider_type": string(provider.Type),
	}
	for k, v := range outcome.ResponseData {
		summary["response_"+k] = v
	}
	return summary
}

func rejectionReason(outcome *InvokeOutcome) string {
	switch {
	case outcome.ErrorMessage != "":
		return outcome.ErrorMessage
	case !outcome.Success:
		return "verification provider reported failure"
	default:
		return "confidence score below approval threshold"
	}
}
