package request

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// Postgres persists authentication requests in PostgreSQL. The opaque
// key-value mappings are stored as JSONB.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed request store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const requestColumns = `id, subject_id, type, method, status, submitted_data, result_summary, provider_summary, reason, expire_time, record_state, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, request *models.AuthenticationRequest) error {
	submitted, result, provider, err := marshalRequestJSON(request)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO authentication_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(request.ID),
		string(request.SubjectID),
		string(request.Type),
		string(request.Method),
		string(request.Status),
		submitted,
		result,
		provider,
		nullableString(request.Reason),
		request.ExpireTime,
		string(request.State),
		request.CreatedAt,
		request.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create authentication request: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, authID id.AuthenticationID) (*models.AuthenticationRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM authentication_requests WHERE id = $1
	`, uuid.UUID(authID))
	return scanRequest(row)
}

// ListBySubject returns a subject's active requests, newest first.
func (s *Postgres) ListBySubject(ctx context.Context, subjectID id.SubjectID) ([]*models.AuthenticationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM authentication_requests
		WHERE subject_id = $1 AND record_state = 'active'
		ORDER BY created_at DESC
	`, string(subjectID))
	if err != nil {
		return nil, fmt.Errorf("list authentication requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// FindStuckProcessing returns active requests still in processing whose last
// update is older than the cutoff. Used by the sweeper.
func (s *Postgres) FindStuckProcessing(ctx context.Context, cutoff time.Time) ([]*models.AuthenticationRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+requestColumns+` FROM authentication_requests
		WHERE record_state = 'active' AND status = 'processing' AND updated_at < $1
		ORDER BY updated_at ASC
	`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stuck authentication requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// Execute atomically validates and mutates a request. The row is locked with
// SELECT ... FOR UPDATE for the duration of the transaction so racing
// result-recording paths cannot interleave transitions.
func (s *Postgres) Execute(
	ctx context.Context,
	authID id.AuthenticationID,
	validate func(*models.AuthenticationRequest) error,
	mutate func(*models.AuthenticationRequest),
) (*models.AuthenticationRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin authentication update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+requestColumns+` FROM authentication_requests WHERE id = $1 FOR UPDATE
	`, uuid.UUID(authID))
	request, err := scanRequest(row)
	if err != nil {
		return nil, err
	}

	if err := validate(request); err != nil {
		return nil, err
	}
	mutate(request)

	_, result, provider, err := marshalRequestJSON(request)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE authentication_requests
		SET status = $2, result_summary = $3, provider_summary = $4,
		    reason = $5, expire_time = $6, record_state = $7, updated_at = $8
		WHERE id = $1
	`,
		uuid.UUID(request.ID),
		string(request.Status),
		result,
		provider,
		nullableString(request.Reason),
		request.ExpireTime,
		string(request.State),
		request.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update authentication request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit authentication update: %w", err)
	}
	return request, nil
}

func marshalRequestJSON(request *models.AuthenticationRequest) (submitted, result, provider []byte, err error) {
	submitted, err = json.Marshal(request.SubmittedData)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal submitted data: %w", err)
	}
	result, err = marshalNullableMap(request.ResultSummary)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal result summary: %w", err)
	}
	provider, err = marshalNullableMap(request.ProviderSummary)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("marshal provider summary: %w", err)
	}
	return submitted, result, provider, nil
}

// marshalNullableMap keeps a nil map as SQL NULL rather than the JSON text
// "null", so the nullable-summary semantics survive a round trip.
func marshalNullableMap(m map[string]string) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*models.AuthenticationRequest, error) {
	var (
		r             models.AuthenticationRequest
		authID        uuid.UUID
		subjectID     string
		authType      string
		method        string
		status        string
		submittedJSON []byte
		resultJSON    []byte
		providerJSON  []byte
		reason        sql.NullString
		expireTime    sql.NullTime
		state         string
	)
	err := row.Scan(
		&authID,
		&subjectID,
		&authType,
		&method,
		&status,
		&submittedJSON,
		&resultJSON,
		&providerJSON,
		&reason,
		&expireTime,
		&state,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("authentication not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan authentication request: %w", err)
	}

	r.ID = id.AuthenticationID(authID)
	r.SubjectID = id.SubjectID(subjectID)
	r.Type = models.AuthenticationType(authType)
	r.Method = id.VerificationMethod(method)
	r.Status = models.RequestStatus(status)
	r.State = models.RecordState(state)
	if reason.Valid {
		r.Reason = reason.String
	}
	if expireTime.Valid {
		t := expireTime.Time
		r.ExpireTime = &t
	}
	if err := json.Unmarshal(submittedJSON, &r.SubmittedData); err != nil {
		return nil, fmt.Errorf("unmarshal submitted data: %w", err)
	}
	if resultJSON != nil {
		if err := json.Unmarshal(resultJSON, &r.ResultSummary); err != nil {
			return nil, fmt.Errorf("unmarshal result summary: %w", err)
		}
	}
	if providerJSON != nil {
		if err := json.Unmarshal(providerJSON, &r.ProviderSummary); err != nil {
			return nil, fmt.Errorf("unmarshal provider summary: %w", err)
		}
	}
	return &r, nil
}

func collectRequests(rows *sql.Rows) ([]*models.AuthenticationRequest, error) {
	var out []*models.AuthenticationRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate authentication requests: %w", err)
	}
	return out, nil
}
