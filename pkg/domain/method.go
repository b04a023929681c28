package domain

import (
	dErrors "veriflow/pkg/domain-errors"
)

// VerificationMethod is the technique used to prove identity.
//
// Usage: construct via ParseVerificationMethod at trust boundaries to enforce
// the allowlist; direct casting bypasses validation.
type VerificationMethod string

// Supported verification methods.
const (
	MethodIDCardTwoElements     VerificationMethod = "id_card_two_elements"
	MethodCarrierThreeElements  VerificationMethod = "carrier_three_elements"
	MethodBankCardThreeElements VerificationMethod = "bank_card_three_elements"
	MethodBankCardFourElements  VerificationMethod = "bank_card_four_elements"
	MethodLivenessDetection     VerificationMethod = "liveness_detection"
)

// Submitted-data field names referenced by the per-method requirements.
const (
	FieldName     = "name"
	FieldIDCard   = "idCard"
	FieldMobile   = "mobile"
	FieldBankCard = "bankCard"
	FieldImage    = "image"
)

// methodSpec attaches validation and display data to a method. Keeping this
// in a lookup table keeps the enum itself a plain closed set of values.
type methodSpec struct {
	requiredFields []string
	label          string
}

// methodSpecs is the single source of truth for valid methods.
var methodSpecs = map[VerificationMethod]methodSpec{
	MethodIDCardTwoElements: {
		requiredFields: []string{FieldName, FieldIDCard},
		label:          "ID card two elements",
	},
	MethodCarrierThreeElements: {
		requiredFields: []string{FieldName, FieldIDCard, FieldMobile},
		label:          "Carrier three elements",
	},
	MethodBankCardThreeElements: {
		requiredFields: []string{FieldName, FieldIDCard, FieldBankCard},
		label:          "Bank card three elements",
	},
	MethodBankCardFourElements: {
		requiredFields: []string{FieldName, FieldIDCard, FieldBankCard, FieldMobile},
		label:          "Bank card four elements",
	},
	MethodLivenessDetection: {
		requiredFields: []string{FieldName, FieldIDCard, FieldImage},
		label:          "Liveness detection",
	},
}

// ParseVerificationMethod constructs a VerificationMethod from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseVerificationMethod(s string) (VerificationMethod, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "verification method cannot be empty")
	}
	m := VerificationMethod(s)
	if !m.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported verification method %q", s)
	}
	return m, nil
}

// IsValid checks if the method is one of the supported enum values.
func (m VerificationMethod) IsValid() bool {
	_, ok := methodSpecs[m]
	return ok
}

// RequiredFields returns the submitted-data fields the method needs. The
// returned slice is a copy; callers may mutate it.
func (m VerificationMethod) RequiredFields() []string {
	spec, ok := methodSpecs[m]
	if !ok {
		return nil
	}
	fields := make([]string, len(spec.requiredFields))
	copy(fields, spec.requiredFields)
	return fields
}

// Label returns a human-readable name for the method.
func (m VerificationMethod) Label() string {
	if spec, ok := methodSpecs[m]; ok {
		return spec.label
	}
	return string(m)
}

// String returns the string representation of the method.
func (m VerificationMethod) String() string {
	return string(m)
}
