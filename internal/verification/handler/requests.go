package handler

import (
	"strings"

	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// SubmitRequest is the HTTP request body for POST /verifications.
type SubmitRequest struct {
	Method string            `json:"method"`
	Fields map[string]string `json:"fields"`

	// Parsed values (populated by Validate)
	parsedMethod id.VerificationMethod
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	method, err := id.ParseVerificationMethod(strings.TrimSpace(r.Method))
	if err != nil {
		return err
	}
	r.parsedMethod = method

	if len(r.Fields) == 0 {
		return dErrors.New(dErrors.CodeValidation, "fields are required")
	}
	// Field sizes are bounded here; method-specific required-field
	// validation belongs to the domain layer.
	for k, v := range r.Fields {
		if len(k) > 64 {
			return dErrors.New(dErrors.CodeValidation, "field names must be 64 characters or less")
		}
		if len(v) > 4096 {
			return dErrors.Newf(dErrors.CodeValidation, "field %q exceeds the maximum length", k)
		}
	}

	return nil
}

// ParsedMethod returns the validated verification method.
func (r *SubmitRequest) ParsedMethod() id.VerificationMethod {
	return r.parsedMethod
}
