package request

// Schema is the DDL for the authentication_requests table. Applied by
// deployment tooling and by integration tests; kept next to the store that
// owns the queries.
const Schema = `
CREATE TABLE IF NOT EXISTS authentication_requests (
	id UUID PRIMARY KEY,
	subject_id TEXT NOT NULL,
	type TEXT NOT NULL,
	method TEXT NOT NULL,
	status TEXT NOT NULL,
	submitted_data JSONB NOT NULL,
	result_summary JSONB,
	provider_summary JSONB,
	reason TEXT,
	expire_time TIMESTAMPTZ,
	record_state TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_auth_requests_subject
	ON authentication_requests (subject_id, created_at DESC)
	WHERE record_state = 'active';

CREATE INDEX IF NOT EXISTS idx_auth_requests_stuck
	ON authentication_requests (updated_at ASC)
	WHERE record_state = 'active' AND status = 'processing';
`
