// Package handler exposes the verification HTTP surface: submitting an
// authentication, polling its status and listing a subject's history.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veriflow/internal/verification/models"
	"veriflow/internal/verification/service"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/httputil"
	"veriflow/pkg/requestcontext"
)

// Service defines the verification operations the handler needs.
type Service interface {
	Submit(ctx context.Context, subjectID id.SubjectID, method id.VerificationMethod, fields map[string]string) (*service.SubmitResult, error)
	CheckStatus(ctx context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error)
	GetHistory(ctx context.Context, subjectID id.SubjectID) ([]*models.AuthenticationRequest, error)
	ListResults(ctx context.Context, authID id.AuthenticationID) ([]*models.VerificationResult, error)
}

// Handler wires verification endpoints to the orchestration service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifications", h.HandleSubmit)
	r.Get("/verifications", h.HandleHistory)
	r.Get("/verifications/{authenticationID}", h.HandleStatus)
	r.Get("/verifications/{authenticationID}/results", h.HandleResults)
}

// HandleSubmit handles POST /verifications requests.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	subjectID, ok := h.requireSubject(w, ctx)
	if !ok {
		return
	}

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Submit(ctx, subjectID, req.ParsedMethod(), req.Fields)
	if err != nil {
		h.logger.ErrorContext(ctx, "authentication submission failed",
			"request_id", requestID,
			"subject_id", subjectID,
			"method", req.Method,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "authentication submission finished",
		"request_id", requestID,
		"subject_id", subjectID,
		"method", req.Method,
		"status", result.Request.Status,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, &SubmitResponse{
		Authentication: FromRequest(result.Request, requestcontext.Now(ctx)),
		Certificate:    result.Certificate,
	})
}

// HandleStatus handles GET /verifications/{authenticationID} requests.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.requireSubject(w, ctx)
	if !ok {
		return
	}
	authID, ok := h.pathAuthenticationID(w, r)
	if !ok {
		return
	}

	request, err := h.service.CheckStatus(ctx, authID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	// Subjects only see their own requests.
	if request.SubjectID != subjectID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "authentication not found"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromRequest(request, requestcontext.Now(ctx)))
}

// HandleHistory handles GET /verifications requests.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.requireSubject(w, ctx)
	if !ok {
		return
	}

	requests, err := h.service.GetHistory(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromRequests(requests, requestcontext.Now(ctx)))
}

// HandleResults handles GET /verifications/{authenticationID}/results requests.
func (h *Handler) HandleResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, ok := h.requireSubject(w, ctx)
	if !ok {
		return
	}
	authID, ok := h.pathAuthenticationID(w, r)
	if !ok {
		return
	}

	request, err := h.service.CheckStatus(ctx, authID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if request.SubjectID != subjectID {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "authentication not found"))
		return
	}

	results, err := h.service.ListResults(ctx, authID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromResults(results))
}

func (h *Handler) requireSubject(w http.ResponseWriter, ctx context.Context) (id.SubjectID, bool) {
	subjectID := requestcontext.SubjectID(ctx)
	if subjectID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return subjectID, true
}

func (h *Handler) pathAuthenticationID(w http.ResponseWriter, r *http.Request) (id.AuthenticationID, bool) {
	authID, err := id.ParseAuthenticationID(chi.URLParam(r, "authenticationID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AuthenticationID{}, false
	}
	return authID, true
}
