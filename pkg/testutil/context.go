package testutil

import (
	"net/http"

	id "veriflow/pkg/domain"
	"veriflow/pkg/requestcontext"
)

// WithSubject adds a subject identifier to the request context, simulating
// what the host application's auth middleware would do for authenticated
// requests. Empty identifiers are ignored.
func WithSubject(req *http.Request, subjectID string) *http.Request {
	parsed, err := id.ParseSubjectID(subjectID)
	if err != nil {
		return req
	}
	req.Header.Set("X-Subject-ID", subjectID)
	ctx := requestcontext.WithSubjectID(req.Context(), parsed)
	return req.WithContext(ctx)
}

// WithRequestID adds a correlation request ID to the request context.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}
