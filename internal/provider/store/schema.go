package store

// Schema is the DDL for the providers table. Applied by deployment tooling
// and by integration tests; kept next to the store that owns the queries.
const Schema = `
CREATE TABLE IF NOT EXISTS providers (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	code TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	supported_methods JSONB NOT NULL,
	endpoint TEXT NOT NULL DEFAULT '',
	settings JSONB NOT NULL DEFAULT '{}'::jsonb,
	callback_secret_hash TEXT NOT NULL DEFAULT '',
	priority INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	record_state TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_providers_selectable
	ON providers (priority DESC, created_at ASC)
	WHERE status = 'active' AND record_state = 'active';
`
