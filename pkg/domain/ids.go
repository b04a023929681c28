// Package domain holds identifier types and closed value sets shared across
// modules. Typed IDs prevent cross-entity assignment at compile time; Parse
// functions enforce invariants at trust boundaries.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "veriflow/pkg/domain-errors"
)

// Typed entity identifiers. Direct casting bypasses validation; construct
// from external input via the Parse functions.
type (
	// AuthenticationID identifies one authentication request.
	AuthenticationID uuid.UUID

	// ProviderID identifies a verification provider.
	ProviderID uuid.UUID

	// ResultID identifies one recorded verification result.
	ResultID uuid.UUID
)

func (id AuthenticationID) String() string { return uuid.UUID(id).String() }
func (id ProviderID) String() string       { return uuid.UUID(id).String() }
func (id ResultID) String() string         { return uuid.UUID(id).String() }

// ParseAuthenticationID constructs an AuthenticationID from external input.
// Rejects empty, malformed, and nil UUIDs.
func ParseAuthenticationID(s string) (AuthenticationID, error) {
	u, err := parseUUID(s, "authentication id")
	if err != nil {
		return AuthenticationID{}, err
	}
	return AuthenticationID(u), nil
}

// ParseProviderID constructs a ProviderID from external input.
func ParseProviderID(s string) (ProviderID, error) {
	u, err := parseUUID(s, "provider id")
	if err != nil {
		return ProviderID{}, err
	}
	return ProviderID(u), nil
}

// ParseResultID constructs a ResultID from external input.
func ParseResultID(s string) (ResultID, error) {
	u, err := parseUUID(s, "result id")
	if err != nil {
		return ResultID{}, err
	}
	return ResultID(u), nil
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be empty", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is not a valid UUID", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s cannot be the nil UUID", what)
	}
	return u, nil
}

// SubjectID is the opaque identifier of the person being verified. The host
// application owns user identity; this module only requires the identifier to
// be stable, unique, and non-empty.
type SubjectID string

const maxSubjectIDLength = 190

// ParseSubjectID constructs a SubjectID from external input.
func ParseSubjectID(s string) (SubjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject id cannot be empty")
	}
	if len(s) > maxSubjectIDLength {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "subject id must be %d characters or less", maxSubjectIDLength)
	}
	return SubjectID(s), nil
}

func (s SubjectID) String() string { return string(s) }
