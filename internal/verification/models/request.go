// Package models defines the authentication request and verification result
// entities and their state machines.
package models

import (
	"strings"
	"time"

	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// AuthenticationType classifies who is being verified. Only personal
// verification exists today; organization verification is a planned extension.
type AuthenticationType string

const (
	TypePersonal AuthenticationType = "personal"
)

var validAuthenticationTypes = map[AuthenticationType]bool{
	TypePersonal: true,
}

// ParseAuthenticationType constructs an AuthenticationType from external input.
func ParseAuthenticationType(s string) (AuthenticationType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "authentication type is required")
	}
	t := AuthenticationType(s)
	if !validAuthenticationTypes[t] {
		return "", dErrors.Newf(dErrors.CodeValidation, "unsupported authentication type %q", s)
	}
	return t, nil
}

// RequestStatus is the lifecycle state of an authentication request.
type RequestStatus string

const (
	StatusPending    RequestStatus = "pending"
	StatusProcessing RequestStatus = "processing"
	StatusApproved   RequestStatus = "approved"
	StatusRejected   RequestStatus = "rejected"
)

// statusTransitions defines every legal edge of the lifecycle state machine.
// Approved and rejected are terminal: an expired approval is never reopened,
// the subject submits a new request instead.
var statusTransitions = map[RequestStatus]map[RequestStatus]bool{
	StatusPending:    {StatusProcessing: true, StatusRejected: true},
	StatusProcessing: {StatusApproved: true, StatusRejected: true},
	StatusApproved:   {},
	StatusRejected:   {},
}

// CanTransitionTo reports whether moving to target is a defined edge.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	return statusTransitions[s][target]
}

// IsTerminal reports whether no transition leaves this status.
func (s RequestStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// Label returns a human-readable name for the status.
func (s RequestStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending Review"
	case StatusProcessing:
		return "Processing"
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	default:
		return string(s)
	}
}

// RecordState is the logical-deletion state of a request record.
type RecordState string

const (
	RecordActive      RecordState = "active"
	RecordInvalidated RecordState = "invalidated"
)

// AuthenticationRequest is one subject's attempt to complete identity
// verification via one method. Its status is mutated only through the
// Apply* transition methods.
type AuthenticationRequest struct {
	ID              id.AuthenticationID   `json:"id"`
	SubjectID       id.SubjectID          `json:"subject_id"`
	Type            AuthenticationType    `json:"type"`
	Method          id.VerificationMethod `json:"method"`
	Status          RequestStatus         `json:"status"`
	SubmittedData   map[string]string     `json:"submitted_data"`
	ResultSummary   map[string]string     `json:"result_summary,omitempty"`
	ProviderSummary map[string]string     `json:"provider_summary,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	ExpireTime      *time.Time            `json:"expire_time,omitempty"`
	State           RecordState           `json:"state"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// NewAuthenticationRequest constructs a pending request, validating the
// submitted fields against the method's required-field set.
func NewAuthenticationRequest(
	authID id.AuthenticationID,
	subjectID id.SubjectID,
	method id.VerificationMethod,
	fields map[string]string,
	now time.Time,
) (*AuthenticationRequest, error) {
	if subjectID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "subject id cannot be empty")
	}
	if !method.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unsupported verification method %q", method)
	}
	if err := ValidateFields(method, fields); err != nil {
		return nil, err
	}

	submitted := make(map[string]string, len(fields))
	for k, v := range fields {
		submitted[k] = v
	}

	return &AuthenticationRequest{
		ID:            authID,
		SubjectID:     subjectID,
		Type:          TypePersonal,
		Method:        method,
		Status:        StatusPending,
		SubmittedData: submitted,
		State:         RecordActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// ValidateFields checks the submitted fields against the required-field set
// for the method. Extra fields are allowed; missing or blank required fields
// are not.
func ValidateFields(method id.VerificationMethod, fields map[string]string) error {
	for _, field := range method.RequiredFields() {
		if strings.TrimSpace(fields[field]) == "" {
			return dErrors.Newf(dErrors.CodeValidation, "field %q is required for method %s", field, method)
		}
	}
	return nil
}

// IsExpired reports whether an expiry time is set and has passed.
func (a *AuthenticationRequest) IsExpired(now time.Time) bool {
	return a.ExpireTime != nil && a.ExpireTime.Before(now)
}

// IsApproved reports whether the request is approved and not expired.
func (a *AuthenticationRequest) IsApproved(now time.Time) bool {
	return a.Status == StatusApproved && !a.IsExpired(now)
}

// CanStartProcessing validates the pending -> processing edge.
func (a *AuthenticationRequest) CanStartProcessing() error {
	return a.canTransitionTo(StatusProcessing)
}

// ApplyStartProcessing marks the request as in flight with a provider.
// Callers must validate with CanStartProcessing first.
func (a *AuthenticationRequest) ApplyStartProcessing(now time.Time) {
	a.Status = StatusProcessing
	a.UpdatedAt = now
}

// CanApprove validates the processing -> approved edge.
func (a *AuthenticationRequest) CanApprove() error {
	return a.canTransitionTo(StatusApproved)
}

// ApplyApproval moves the request to approved, attaching the result and
// provider summaries. A positive expiresIn sets the expiry window; zero means
// the approval never expires. Any prior rejection reason is cleared.
// Callers must validate with CanApprove first.
func (a *AuthenticationRequest) ApplyApproval(
	resultSummary, providerSummary map[string]string,
	expiresIn time.Duration,
	now time.Time,
) {
	a.Status = StatusApproved
	a.ResultSummary = resultSummary
	a.ProviderSummary = providerSummary
	a.Reason = ""
	if expiresIn > 0 {
		expireTime := now.Add(expiresIn)
		a.ExpireTime = &expireTime
	} else {
		a.ExpireTime = nil
	}
	a.UpdatedAt = now
}

// CanReject validates a transition to rejected. Both pending and processing
// requests may be rejected; a non-empty reason is required.
func (a *AuthenticationRequest) CanReject(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "rejection reason cannot be empty")
	}
	return a.canTransitionTo(StatusRejected)
}

// ApplyRejection moves the request to rejected with the given reason.
// Summaries are optional diagnostic payloads. Callers must validate with
// CanReject first.
func (a *AuthenticationRequest) ApplyRejection(
	reason string,
	resultSummary, providerSummary map[string]string,
	now time.Time,
) {
	a.Status = StatusRejected
	a.Reason = strings.TrimSpace(reason)
	if resultSummary != nil {
		a.ResultSummary = resultSummary
	}
	if providerSummary != nil {
		a.ProviderSummary = providerSummary
	}
	a.ExpireTime = nil
	a.UpdatedAt = now
}

// CanInvalidate validates logical deletion of the record.
func (a *AuthenticationRequest) CanInvalidate() error {
	if a.State == RecordInvalidated {
		return dErrors.New(dErrors.CodeInvariantViolation, "authentication request is already invalidated")
	}
	return nil
}

// ApplyInvalidation marks the record as logically deleted. Terminal.
func (a *AuthenticationRequest) ApplyInvalidation(now time.Time) {
	a.State = RecordInvalidated
	a.UpdatedAt = now
}

func (a *AuthenticationRequest) canTransitionTo(target RequestStatus) error {
	if a.State == RecordInvalidated {
		return dErrors.New(dErrors.CodeInvalidTransition, "authentication request is invalidated")
	}
	if !a.Status.CanTransitionTo(target) {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "cannot transition from %s to %s", a.Status, target)
	}
	return nil
}
