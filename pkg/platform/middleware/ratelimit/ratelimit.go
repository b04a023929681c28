// Package ratelimit throttles verification submissions per subject. The
// limiter keys on the resolved subject id and falls back to the client IP for
// unauthenticated traffic; limiter backend failures fail open so a degraded
// Redis never blocks verifications.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"veriflow/pkg/platform/httputil"
	"veriflow/pkg/requestcontext"
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Store answers whether a request under the given key is within the limit,
// counting it when it is.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Middleware enforces a per-key request limit.
type Middleware struct {
	store  Store
	limit  int
	window time.Duration
	logger *slog.Logger
}

// New constructs a rate limit middleware.
func New(store Store, limit int, window time.Duration, logger *slog.Logger) *Middleware {
	return &Middleware{store: store, limit: limit, window: window, logger: logger}
}

// Limit wraps a handler with the per-subject request limit.
func (m *Middleware) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		result, err := m.store.Allow(ctx, m.key(ctx), m.limit, m.window)
		if err != nil {
			if m.logger != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":       "rate_limit_exceeded",
				"message":     "Too many verification requests. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) key(ctx context.Context) string {
	if subjectID := requestcontext.SubjectID(ctx); subjectID != "" {
		return "subject:" + subjectID.String()
	}
	return "ip:" + requestcontext.ClientIP(ctx)
}
