package models

import (
	"strings"
	"time"

	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// VerificationResult records one provider invocation's outcome for a request.
// Results are write-once: nothing mutates them after creation except the
// record state, which an audit process may flip to invalidated.
type VerificationResult struct {
	ID               id.ResultID         `json:"id"`
	AuthenticationID id.AuthenticationID `json:"authentication_id"`
	ProviderID       id.ProviderID       `json:"provider_id"`
	RequestID        string              `json:"request_id"`
	Success          bool                `json:"success"`
	Confidence       *float64            `json:"confidence,omitempty"`
	ResponseData     map[string]string   `json:"response_data,omitempty"`
	ErrorCode        string              `json:"error_code,omitempty"`
	ErrorMessage     string              `json:"error_message,omitempty"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
	State            RecordState         `json:"state"`
	CreatedAt        time.Time           `json:"created_at"`
}

// NewVerificationResult constructs a result, validating its invariants.
// Confidence is optional but must lie in [0, 1] when present.
func NewVerificationResult(
	resultID id.ResultID,
	authID id.AuthenticationID,
	providerID id.ProviderID,
	requestID string,
	success bool,
	confidence *float64,
	responseData map[string]string,
	errorCode string,
	errorMessage string,
	processingTimeMs int64,
	now time.Time,
) (*VerificationResult, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidResult, "request id cannot be empty")
	}
	if len(requestID) > 128 {
		return nil, dErrors.New(dErrors.CodeInvalidResult, "request id must be 128 characters or less")
	}
	if confidence != nil && (*confidence < 0 || *confidence > 1) {
		return nil, dErrors.Newf(dErrors.CodeInvalidResult, "confidence %v is outside [0, 1]", *confidence)
	}
	if processingTimeMs < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidResult, "processing time cannot be negative")
	}
	if responseData == nil {
		responseData = map[string]string{}
	}

	return &VerificationResult{
		ID:               resultID,
		AuthenticationID: authID,
		ProviderID:       providerID,
		RequestID:        requestID,
		Success:          success,
		Confidence:       confidence,
		ResponseData:     responseData,
		ErrorCode:        errorCode,
		ErrorMessage:     errorMessage,
		ProcessingTimeMs: processingTimeMs,
		State:            RecordActive,
		CreatedAt:        now,
	}, nil
}

// CanInvalidate validates logical deletion of the result.
func (v *VerificationResult) CanInvalidate() error {
	if v.State == RecordInvalidated {
		return dErrors.New(dErrors.CodeInvariantViolation, "verification result is already invalidated")
	}
	return nil
}

// ApplyInvalidation marks the result as logically deleted. Terminal.
func (v *VerificationResult) ApplyInvalidation() {
	v.State = RecordInvalidated
}
