// Package handler exposes the provider administration HTTP surface. All
// routes here sit behind the admin token middleware.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"veriflow/internal/provider/models"
	"veriflow/internal/provider/service"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/httputil"
	"veriflow/pkg/requestcontext"
)

// Service defines the provider administration operations.
type Service interface {
	Register(ctx context.Context, params service.RegisterParams) (*models.Provider, string, error)
	Get(ctx context.Context, providerID id.ProviderID) (*models.Provider, error)
	List(ctx context.Context) ([]*models.Provider, error)
	Activate(ctx context.Context, providerID id.ProviderID) (*models.Provider, error)
	Deactivate(ctx context.Context, providerID id.ProviderID) (*models.Provider, error)
	Invalidate(ctx context.Context, providerID id.ProviderID) (*models.Provider, error)
	RotateCallbackSecret(ctx context.Context, providerID id.ProviderID) (string, error)
}

// Handler wires provider administration endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a provider admin handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts admin endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/providers", h.HandleRegister)
	r.Get("/admin/providers", h.HandleList)
	r.Get("/admin/providers/{providerID}", h.HandleGet)
	r.Post("/admin/providers/{providerID}/activate", h.HandleActivate)
	r.Post("/admin/providers/{providerID}/deactivate", h.HandleDeactivate)
	r.Post("/admin/providers/{providerID}/invalidate", h.HandleInvalidate)
	r.Post("/admin/providers/{providerID}/rotate-secret", h.HandleRotateSecret)
}

// HandleRegister handles POST /admin/providers requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	provider, secret, err := h.service.Register(ctx, service.RegisterParams{
		Name:             req.Name,
		Code:             req.Code,
		Type:             req.ParsedType(),
		SupportedMethods: req.ParsedMethods(),
		Endpoint:         req.Endpoint,
		Settings:         req.Settings,
		Priority:         req.Priority,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "provider registration failed",
			"request_id", requestID,
			"code", req.Code,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "provider registered",
		"request_id", requestID,
		"provider_id", provider.ID,
		"code", provider.Code,
	)
	httputil.WriteJSON(w, http.StatusCreated, &RegisterResponse{
		Provider:       FromProvider(provider),
		CallbackSecret: secret,
	})
}

// HandleList handles GET /admin/providers requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	providers, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProviders(providers))
}

// HandleGet handles GET /admin/providers/{providerID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	providerID, ok := h.pathProviderID(w, r)
	if !ok {
		return
	}
	provider, err := h.service.Get(r.Context(), providerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromProvider(provider))
}

// HandleActivate handles POST /admin/providers/{providerID}/activate requests.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "provider activated", h.service.Activate)
}

// HandleDeactivate handles POST /admin/providers/{providerID}/deactivate requests.
func (h *Handler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "provider deactivated", h.service.Deactivate)
}

// HandleInvalidate handles POST /admin/providers/{providerID}/invalidate requests.
func (h *Handler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "provider invalidated", h.service.Invalidate)
}

// HandleRotateSecret handles POST /admin/providers/{providerID}/rotate-secret requests.
func (h *Handler) HandleRotateSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	providerID, ok := h.pathProviderID(w, r)
	if !ok {
		return
	}

	secret, err := h.service.RotateCallbackSecret(ctx, providerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "provider callback secret rotated",
		"request_id", requestcontext.RequestID(ctx),
		"provider_id", providerID,
	)
	httputil.WriteJSON(w, http.StatusOK, &RotateSecretResponse{CallbackSecret: secret})
}

func (h *Handler) transition(
	w http.ResponseWriter,
	r *http.Request,
	logMsg string,
	op func(ctx context.Context, providerID id.ProviderID) (*models.Provider, error),
) {
	ctx := r.Context()
	providerID, ok := h.pathProviderID(w, r)
	if !ok {
		return
	}

	provider, err := op(ctx, providerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, logMsg,
		"request_id", requestcontext.RequestID(ctx),
		"provider_id", provider.ID,
		"code", provider.Code,
	)
	httputil.WriteJSON(w, http.StatusOK, FromProvider(provider))
}

func (h *Handler) pathProviderID(w http.ResponseWriter, r *http.Request) (id.ProviderID, bool) {
	providerID, err := id.ParseProviderID(chi.URLParam(r, "providerID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.ProviderID{}, false
	}
	return providerID, true
}
