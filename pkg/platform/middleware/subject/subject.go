// Package subject resolves the authenticated subject for a request. The host
// application authenticates its users itself and forwards the stable subject
// identifier in a trusted header; this module never sees credentials.
package subject

import (
	"net/http"

	id "veriflow/pkg/domain"
	"veriflow/pkg/requestcontext"
)

// Header carries the authenticated subject identifier, set by the host
// application's gateway.
const Header = "X-Subject-ID"

// Resolve places the subject identifier from the trusted header into the
// request context. Requests without one pass through; handlers that require
// a subject reject them individually.
func Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if subjectID, err := id.ParseSubjectID(r.Header.Get(Header)); err == nil {
			r = r.WithContext(requestcontext.WithSubjectID(r.Context(), subjectID))
		}
		next.ServeHTTP(w, r)
	})
}
