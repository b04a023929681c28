package result

// Schema is the DDL for the verification_results table. The unique index on
// request_id backs the idempotency guarantee.
const Schema = `
CREATE TABLE IF NOT EXISTS verification_results (
	id UUID PRIMARY KEY,
	authentication_id UUID NOT NULL,
	provider_id UUID NOT NULL,
	request_id TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	confidence DOUBLE PRECISION,
	response_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	error_code TEXT,
	error_message TEXT,
	processing_time_ms BIGINT NOT NULL,
	record_state TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_verification_results_request_id
	ON verification_results (request_id);

CREATE INDEX IF NOT EXISTS idx_verification_results_auth
	ON verification_results (authentication_id, created_at ASC);
`
