package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// Postgres persists verification results in PostgreSQL. The unique index on
// request_id enforces idempotency at the persistence boundary.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed result store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const resultColumns = `id, authentication_id, provider_id, request_id, success, confidence, response_data, error_code, error_message, processing_time_ms, record_state, created_at`

func (s *Postgres) Create(ctx context.Context, result *models.VerificationResult) error {
	responseData, err := json.Marshal(result.ResponseData)
	if err != nil {
		return fmt.Errorf("marshal response data: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_results (`+resultColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		uuid.UUID(result.ID),
		uuid.UUID(result.AuthenticationID),
		uuid.UUID(result.ProviderID),
		result.RequestID,
		result.Success,
		result.Confidence,
		responseData,
		nullableString(result.ErrorCode),
		nullableString(result.ErrorMessage),
		result.ProcessingTimeMs,
		string(result.State),
		result.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("request id %q: %w", result.RequestID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create verification result: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, resultID id.ResultID) (*models.VerificationResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+` FROM verification_results WHERE id = $1
	`, uuid.UUID(resultID))
	return scanResult(row)
}

// ListByAuthentication returns a request's results oldest first.
func (s *Postgres) ListByAuthentication(ctx context.Context, authID id.AuthenticationID) ([]*models.VerificationResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+resultColumns+` FROM verification_results
		WHERE authentication_id = $1
		ORDER BY created_at ASC
	`, uuid.UUID(authID))
	if err != nil {
		return nil, fmt.Errorf("list verification results: %w", err)
	}
	defer rows.Close()

	var out []*models.VerificationResult
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate verification results: %w", err)
	}
	return out, nil
}

// Invalidate marks a result as logically deleted.
func (s *Postgres) Invalidate(ctx context.Context, resultID id.ResultID) (*models.VerificationResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin result update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+resultColumns+` FROM verification_results WHERE id = $1 FOR UPDATE
	`, uuid.UUID(resultID))
	result, err := scanResult(row)
	if err != nil {
		return nil, err
	}
	if err := result.CanInvalidate(); err != nil {
		return nil, err
	}
	result.ApplyInvalidation()

	_, err = tx.ExecContext(ctx, `
		UPDATE verification_results SET record_state = $2 WHERE id = $1
	`, uuid.UUID(result.ID), string(result.State))
	if err != nil {
		return nil, fmt.Errorf("update verification result: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit result update: %w", err)
	}
	return result, nil
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

func scanResult(row rowScanner) (*models.VerificationResult, error) {
	var (
		r            models.VerificationResult
		resultID     uuid.UUID
		authID       uuid.UUID
		providerID   uuid.UUID
		confidence   sql.NullFloat64
		responseJSON []byte
		errorCode    sql.NullString
		errorMessage sql.NullString
		state        string
	)
	err := row.Scan(
		&resultID,
		&authID,
		&providerID,
		&r.RequestID,
		&r.Success,
		&confidence,
		&responseJSON,
		&errorCode,
		&errorMessage,
		&r.ProcessingTimeMs,
		&state,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification result not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan verification result: %w", err)
	}

	r.ID = id.ResultID(resultID)
	r.AuthenticationID = id.AuthenticationID(authID)
	r.ProviderID = id.ProviderID(providerID)
	r.State = models.RecordState(state)
	if confidence.Valid {
		c := confidence.Float64
		r.Confidence = &c
	}
	if errorCode.Valid {
		r.ErrorCode = errorCode.String
	}
	if errorMessage.Valid {
		r.ErrorMessage = errorMessage.String
	}
	if err := json.Unmarshal(responseJSON, &r.ResponseData); err != nil {
		return nil, fmt.Errorf("unmarshal response data: %w", err)
	}
	return &r, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
