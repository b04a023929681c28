package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	id "veriflow/pkg/domain"
)

// PostgresStore persists audit events in PostgreSQL. Rows are append-only;
// there is no update or delete path.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed audit store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// PostgresSchema is the DDL for the audit_events table.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	subject_id TEXT NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	authentication_id TEXT NOT NULL DEFAULT '',
	method TEXT NOT NULL DEFAULT '',
	provider_code TEXT NOT NULL DEFAULT '',
	decision TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	client_ip TEXT NOT NULL DEFAULT '',
	device_name TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_events_subject
	ON audit_events (subject_id, occurred_at DESC);
`

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, occurred_at, subject_id, action, authentication_id,
			method, provider_code, decision, reason, request_id, client_ip, device_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		uuid.New(),
		event.Timestamp,
		string(event.SubjectID),
		event.Action,
		event.AuthenticationID,
		event.Method,
		event.ProviderCode,
		event.Decision,
		event.Reason,
		event.RequestID,
		event.ClientIP,
		event.DeviceName,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT occurred_at, subject_id, action, authentication_id, method,
			provider_code, decision, reason, request_id, client_ip, device_name
		FROM audit_events
		WHERE subject_id = $1
		ORDER BY occurred_at DESC
	`, string(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			subject string
		)
		err := rows.Scan(&e.Timestamp, &subject, &e.Action, &e.AuthenticationID,
			&e.Method, &e.ProviderCode, &e.Decision, &e.Reason, &e.RequestID,
			&e.ClientIP, &e.DeviceName)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.SubjectID = id.SubjectID(subject)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
