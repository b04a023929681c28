package domain

import (
	dErrors "veriflow/pkg/domain-errors"
)

// ProviderType classifies a verification provider by the authoritative data
// source it checks against.
type ProviderType string

const (
	ProviderTypeGovernment ProviderType = "government"
	ProviderTypeBankUnion  ProviderType = "bank_union"
	ProviderTypeCarrier    ProviderType = "carrier"
	ProviderTypeThirdParty ProviderType = "third_party"
)

var validProviderTypes = map[ProviderType]bool{
	ProviderTypeGovernment: true,
	ProviderTypeBankUnion:  true,
	ProviderTypeCarrier:    true,
	ProviderTypeThirdParty: true,
}

// ParseProviderType constructs a ProviderType from external input.
func ParseProviderType(s string) (ProviderType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "provider type cannot be empty")
	}
	t := ProviderType(s)
	if !validProviderTypes[t] {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported provider type %q", s)
	}
	return t, nil
}

// IsValid checks if the type is one of the supported enum values.
func (t ProviderType) IsValid() bool {
	return validProviderTypes[t]
}

// String returns the string representation of the type.
func (t ProviderType) String() string {
	return string(t)
}
