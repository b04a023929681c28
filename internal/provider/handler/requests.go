package handler

import (
	"strings"

	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

// RegisterRequest is the HTTP request body for POST /admin/providers.
type RegisterRequest struct {
	Name             string            `json:"name"`
	Code             string            `json:"code"`
	Type             string            `json:"type"`
	SupportedMethods []string          `json:"supported_methods"`
	Endpoint         string            `json:"endpoint"`
	Settings         map[string]string `json:"settings"`
	Priority         int               `json:"priority"`

	// Parsed values (populated by Validate)
	parsedType    id.ProviderType
	parsedMethods []id.VerificationMethod
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	r.Code = strings.TrimSpace(r.Code)
	if r.Code == "" {
		return dErrors.New(dErrors.CodeValidation, "code is required")
	}

	providerType, err := id.ParseProviderType(strings.TrimSpace(r.Type))
	if err != nil {
		return err
	}
	r.parsedType = providerType

	if len(r.SupportedMethods) == 0 {
		return dErrors.New(dErrors.CodeValidation, "supported_methods is required")
	}
	methods := make([]id.VerificationMethod, 0, len(r.SupportedMethods))
	for _, raw := range r.SupportedMethods {
		method, err := id.ParseVerificationMethod(strings.TrimSpace(raw))
		if err != nil {
			return err
		}
		methods = append(methods, method)
	}
	r.parsedMethods = methods

	if r.Priority < 0 {
		return dErrors.New(dErrors.CodeValidation, "priority cannot be negative")
	}

	return nil
}

// ParsedType returns the validated provider type.
func (r *RegisterRequest) ParsedType() id.ProviderType {
	return r.parsedType
}

// ParsedMethods returns the validated verification methods.
func (r *RegisterRequest) ParsedMethods() []id.VerificationMethod {
	return r.parsedMethods
}
