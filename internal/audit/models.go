package audit

import (
	"time"

	id "veriflow/pkg/domain"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp        time.Time        `json:"timestamp"`
	SubjectID        id.SubjectID     `json:"subject_id,omitempty"`
	Action           string           `json:"action"`
	AuthenticationID string           `json:"authentication_id,omitempty"`
	Method           string           `json:"method,omitempty"`
	ProviderCode     string           `json:"provider_code,omitempty"`
	Decision         string           `json:"decision,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	RequestID        string           `json:"request_id,omitempty"`
	ClientIP         string           `json:"client_ip,omitempty"`
	DeviceName       string           `json:"device_name,omitempty"`
}

// Audit actions emitted by this service.
const (
	// Authentication lifecycle
	EventAuthenticationSubmitted = "authentication_submitted"
	EventAuthenticationApproved  = "authentication_approved"
	EventAuthenticationRejected  = "authentication_rejected"
	EventResultRecorded          = "result_recorded"
	EventCertificateIssued       = "certificate_issued"
	EventStuckRequestSwept       = "stuck_request_swept"

	// Provider administration
	EventProviderRegistered    = "provider_registered"
	EventProviderActivated     = "provider_activated"
	EventProviderDeactivated   = "provider_deactivated"
	EventProviderInvalidated   = "provider_invalidated"
	EventProviderSecretRotated = "provider_secret_rotated"
)
