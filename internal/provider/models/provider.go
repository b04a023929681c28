package models

import (
	"strings"
	"time"

	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// Status is the administrative on/off switch for a provider.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// CanTransitionTo reports whether the status may change to target.
// Only active ↔ inactive flips are allowed.
func (s Status) CanTransitionTo(target Status) bool {
	switch s {
	case StatusActive:
		return target == StatusInactive
	case StatusInactive:
		return target == StatusActive
	default:
		return false
	}
}

// RecordState is the logical-deletion state of a provider record. A tagged
// state rather than a boolean so invalidated rows cannot be resurrected
// through ambiguous flag logic.
type RecordState string

const (
	RecordActive      RecordState = "active"
	RecordInvalidated RecordState = "invalidated"
)

// Provider is external reference data describing one verification provider.
//
// Invariants:
//   - Code is non-empty, at most 64 characters, and unique across providers
//     (uniqueness enforced by the store)
//   - Name is non-empty and at most 128 characters
//   - SupportedMethods is non-empty and holds no duplicates
//   - RecordInvalidated is terminal; no transition leaves it
//   - The verification flow reads providers but never mutates them; all
//     mutation goes through the admin service
//
// Settings is an opaque key-value mapping (API keys, region hints) consumed
// only by the provider-invocation collaborator; the core never interprets it.
type Provider struct {
	ID                 id.ProviderID           `json:"id"`
	Name               string                  `json:"name"`
	Code               string                  `json:"code"`
	Type               id.ProviderType         `json:"type"`
	SupportedMethods   []id.VerificationMethod `json:"supported_methods"`
	Endpoint           string                  `json:"endpoint"`
	Settings           map[string]string       `json:"-"` // Never serialize - may contain secrets
	CallbackSecretHash string                  `json:"-"` // Never serialize - contains bcrypt hash
	Priority           int                     `json:"priority"`
	Status             Status                  `json:"status"`
	State              RecordState             `json:"state"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
}

// NewProvider constructs a Provider, validating invariants. New providers
// start active so an administrator registering one does not need a second
// call to enable it.
func NewProvider(
	providerID id.ProviderID,
	name string,
	code string,
	providerType id.ProviderType,
	supportedMethods []id.VerificationMethod,
	endpoint string,
	settings map[string]string,
	priority int,
	now time.Time,
) (*Provider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "provider name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "provider name must be 128 characters or less")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "provider code cannot be empty")
	}
	if len(code) > 64 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "provider code must be 64 characters or less")
	}
	if strings.ContainsAny(code, " \t\n") {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "provider code cannot contain whitespace")
	}
	if !providerType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "provider type is not supported")
	}
	if len(supportedMethods) == 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "provider must support at least one verification method")
	}
	methods := make([]id.VerificationMethod, 0, len(supportedMethods))
	seen := make(map[id.VerificationMethod]bool, len(supportedMethods))
	for _, m := range supportedMethods {
		if !m.IsValid() {
			return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unsupported verification method %q", m)
		}
		if seen[m] {
			continue
		}
		seen[m] = true
		methods = append(methods, m)
	}
	if settings == nil {
		settings = map[string]string{}
	}

	return &Provider{
		ID:               providerID,
		Name:             name,
		Code:             code,
		Type:             providerType,
		SupportedMethods: methods,
		Endpoint:         endpoint,
		Settings:         settings,
		Priority:         priority,
		Status:           StatusActive,
		State:            RecordActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// IsSelectable reports whether the selector may pick this provider: it must
// be administratively active and not logically deleted.
func (p *Provider) IsSelectable() bool {
	return p.Status == StatusActive && p.State == RecordActive
}

// Supports reports whether the provider handles the given method.
func (p *Provider) Supports(method id.VerificationMethod) bool {
	for _, m := range p.SupportedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// CanDeactivate checks if the provider can transition to inactive.
// Use with ApplyDeactivation in Execute callbacks.
func (p *Provider) CanDeactivate() error {
	if p.State == RecordInvalidated {
		return dErrors.New(dErrors.CodeInvariantViolation, "provider is invalidated")
	}
	if !p.Status.CanTransitionTo(StatusInactive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "provider is already inactive")
	}
	return nil
}

// ApplyDeactivation transitions the provider to inactive.
// Call CanDeactivate first to validate the transition.
func (p *Provider) ApplyDeactivation(now time.Time) {
	p.Status = StatusInactive
	p.UpdatedAt = now
}

// CanActivate checks if the provider can transition to active.
// Use with ApplyActivation in Execute callbacks.
func (p *Provider) CanActivate() error {
	if p.State == RecordInvalidated {
		return dErrors.New(dErrors.CodeInvariantViolation, "provider is invalidated")
	}
	if !p.Status.CanTransitionTo(StatusActive) {
		return dErrors.New(dErrors.CodeInvariantViolation, "provider is already active")
	}
	return nil
}

// ApplyActivation transitions the provider to active.
// Call CanActivate first to validate the transition.
func (p *Provider) ApplyActivation(now time.Time) {
	p.Status = StatusActive
	p.UpdatedAt = now
}

// CanInvalidate checks if the provider can be logically deleted.
// Use with ApplyInvalidation in Execute callbacks.
func (p *Provider) CanInvalidate() error {
	if p.State == RecordInvalidated {
		return dErrors.New(dErrors.CodeInvariantViolation, "provider is already invalidated")
	}
	return nil
}

// ApplyInvalidation logically deletes the provider. Invalidation is terminal;
// the row stays for audit linkage from recorded results.
func (p *Provider) ApplyInvalidation(now time.Time) {
	p.State = RecordInvalidated
	p.Status = StatusInactive
	p.UpdatedAt = now
}

// SetCallbackSecretHash stores a new bcrypt hash of the callback secret.
func (p *Provider) SetCallbackSecretHash(hash string, now time.Time) {
	p.CallbackSecretHash = hash
	p.UpdatedAt = now
}
