package handler

import (
	"time"

	"veriflow/internal/verification/models"
)

// AuthenticationResponse is the HTTP representation of an authentication
// request. The submitted data round-trips so callers can confirm what was
// received; expiry predicates are evaluated at render time.
type AuthenticationResponse struct {
	ID            string            `json:"id"`
	Method        string            `json:"method"`
	MethodLabel   string            `json:"method_label"`
	Status        string            `json:"status"`
	StatusLabel   string            `json:"status_label"`
	SubmittedData map[string]string `json:"submitted_data"`
	Reason        string            `json:"reason,omitempty"`
	ExpireTime    *time.Time        `json:"expire_time,omitempty"`
	Expired       bool              `json:"expired"`
	Approved      bool              `json:"approved"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// SubmitResponse is the HTTP response for POST /verifications.
type SubmitResponse struct {
	Authentication *AuthenticationResponse `json:"authentication"`
	Certificate    string                  `json:"certificate,omitempty"`
}

// HistoryResponse wraps a subject's authentication history.
type HistoryResponse struct {
	Authentications []*AuthenticationResponse `json:"authentications"`
}

// ResultResponse is the HTTP representation of one verification result.
type ResultResponse struct {
	ID               string    `json:"id"`
	ProviderID       string    `json:"provider_id"`
	RequestID        string    `json:"request_id"`
	Success          bool      `json:"success"`
	Confidence       *float64  `json:"confidence,omitempty"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}

// ResultsResponse wraps a request's verification results.
type ResultsResponse struct {
	Results []*ResultResponse `json:"results"`
}

// FromRequest converts a domain request to its HTTP representation,
// evaluating the time-dependent predicates against now.
func FromRequest(r *models.AuthenticationRequest, now time.Time) *AuthenticationResponse {
	return &AuthenticationResponse{
		ID:            r.ID.String(),
		Method:        string(r.Method),
		MethodLabel:   r.Method.Label(),
		Status:        string(r.Status),
		StatusLabel:   r.Status.Label(),
		SubmittedData: r.SubmittedData,
		Reason:        r.Reason,
		ExpireTime:    r.ExpireTime,
		Expired:       r.IsExpired(now),
		Approved:      r.IsApproved(now),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

// FromRequests converts a request slice.
func FromRequests(requests []*models.AuthenticationRequest, now time.Time) *HistoryResponse {
	out := make([]*AuthenticationResponse, 0, len(requests))
	for _, r := range requests {
		out = append(out, FromRequest(r, now))
	}
	return &HistoryResponse{Authentications: out}
}

// FromResults converts a result slice. Response payloads stay internal.
func FromResults(results []*models.VerificationResult) *ResultsResponse {
	out := make([]*ResultResponse, 0, len(results))
	for _, r := range results {
		out = append(out, &ResultResponse{
			ID:               r.ID.String(),
			ProviderID:       r.ProviderID.String(),
			RequestID:        r.RequestID,
			Success:          r.Success,
			Confidence:       r.Confidence,
			ErrorCode:        r.ErrorCode,
			ErrorMessage:     r.ErrorMessage,
			ProcessingTimeMs: r.ProcessingTimeMs,
			CreatedAt:        r.CreatedAt,
		})
	}
	return &ResultsResponse{Results: out}
}
