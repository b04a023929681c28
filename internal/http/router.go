// Package http assembles the service's HTTP surface.
package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	providerhandler "veriflow/internal/provider/handler"
	verificationhandler "veriflow/internal/verification/handler"
	"veriflow/pkg/platform/middleware/admin"
	"veriflow/pkg/platform/middleware/metadata"
	"veriflow/pkg/platform/middleware/ratelimit"
	"veriflow/pkg/platform/middleware/requesttime"
	"veriflow/pkg/platform/middleware/subject"
)

// RouterConfig carries the handlers and settings the router mounts.
type RouterConfig struct {
	Verification *verificationhandler.Handler
	Provider     *providerhandler.Handler
	RateLimit    *ratelimit.Middleware
	AdminToken   string
	Logger       *slog.Logger
}

// NewRouter builds the chi router with the service's middleware stack:
// request time and id first so everything downstream shares one clock and
// correlation id, then client metadata for the audit trail.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(subject.Resolve)
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit.Limit)
		}
		cfg.Verification.Register(r)
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
		cfg.Provider.Register(r)
	})

	return r
}
