// Package requesttime provides middleware for request-scoped time and
// correlation IDs. All operations within a single HTTP request observe the
// same "now" timestamp, keeping domain timestamps and audit entries
// consistent, and share one correlation ID for log stitching.
package requesttime

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"veriflow/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// assigns a correlation ID when the client did not send one via X-Request-ID.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = requestcontext.WithRequestID(ctx, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
