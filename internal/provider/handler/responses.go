package handler

import (
	"time"

	"veriflow/internal/provider/models"
)

// ProviderResponse is the HTTP representation of a provider.
type ProviderResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Code             string    `json:"code"`
	Type             string    `json:"type"`
	SupportedMethods []string  `json:"supported_methods"`
	Endpoint         string    `json:"endpoint"`
	Priority         int       `json:"priority"`
	Status           string    `json:"status"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// RegisterResponse includes the one-time callback secret alongside the
// provider representation.
type RegisterResponse struct {
	Provider       *ProviderResponse `json:"provider"`
	CallbackSecret string            `json:"callback_secret"`
}

// RotateSecretResponse carries a freshly rotated callback secret.
type RotateSecretResponse struct {
	CallbackSecret string `json:"callback_secret"`
}

// ListResponse wraps a provider collection.
type ListResponse struct {
	Providers []*ProviderResponse `json:"providers"`
}

// FromProvider converts a domain provider to its HTTP representation.
// Settings and the callback secret hash are never exposed.
func FromProvider(p *models.Provider) *ProviderResponse {
	methods := make([]string, 0, len(p.SupportedMethods))
	for _, m := range p.SupportedMethods {
		methods = append(methods, string(m))
	}
	return &ProviderResponse{
		ID:               p.ID.String(),
		Name:             p.Name,
		Code:             p.Code,
		Type:             string(p.Type),
		SupportedMethods: methods,
		Endpoint:         p.Endpoint,
		Priority:         p.Priority,
		Status:           string(p.Status),
		State:            string(p.State),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// FromProviders converts a provider slice.
func FromProviders(providers []*models.Provider) *ListResponse {
	out := make([]*ProviderResponse, 0, len(providers))
	for _, p := range providers {
		out = append(out, FromProvider(p))
	}
	return &ListResponse{Providers: out}
}
