package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"veriflow/internal/provider/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

// Postgres persists providers in PostgreSQL. Supported methods and settings
// are stored as JSONB; ordering is pushed into the queries so the memory and
// Postgres stores agree on selector ordering.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed provider store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const providerColumns = `id, name, code, type, supported_methods, endpoint, settings, callback_secret_hash, priority, status, record_state, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, provider *models.Provider) error {
	methods, settings, err := marshalProviderJSON(provider)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO providers (`+providerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(provider.ID),
		provider.Name,
		provider.Code,
		string(provider.Type),
		methods,
		provider.Endpoint,
		settings,
		provider.CallbackSecretHash,
		provider.Priority,
		string(provider.Status),
		string(provider.State),
		provider.CreatedAt,
		provider.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("provider code %q: %w", provider.Code, sentinel.ErrConflict)
		}
		return fmt.Errorf("create provider: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, providerID id.ProviderID) (*models.Provider, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+providerColumns+` FROM providers WHERE id = $1
	`, uuid.UUID(providerID))
	return scanProvider(row)
}

func (s *Postgres) FindByCode(ctx context.Context, code string) (*models.Provider, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+providerColumns+` FROM providers WHERE code = $1
	`, code)
	return scanProvider(row)
}

func (s *Postgres) FindActive(ctx context.Context) ([]*models.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+providerColumns+` FROM providers
		WHERE status = 'active' AND record_state = 'active'
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find active providers: %w", err)
	}
	defer rows.Close()
	return collectProviders(rows)
}

func (s *Postgres) FindByMethod(ctx context.Context, method id.VerificationMethod) ([]*models.Provider, error) {
	needle, err := json.Marshal([]string{string(method)})
	if err != nil {
		return nil, fmt.Errorf("marshal method filter: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+providerColumns+` FROM providers
		WHERE status = 'active' AND record_state = 'active'
		  AND supported_methods @> $1::jsonb
		ORDER BY priority DESC, created_at ASC
	`, needle)
	if err != nil {
		return nil, fmt.Errorf("find providers by method: %w", err)
	}
	defer rows.Close()
	return collectProviders(rows)
}

func (s *Postgres) List(ctx context.Context) ([]*models.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+providerColumns+` FROM providers
		ORDER BY priority DESC, created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()
	return collectProviders(rows)
}

// Execute atomically validates and mutates a provider. The row is locked with
// SELECT ... FOR UPDATE for the duration of the transaction so concurrent
// admin operations cannot interleave.
func (s *Postgres) Execute(
	ctx context.Context,
	providerID id.ProviderID,
	validate func(*models.Provider) error,
	mutate func(*models.Provider),
) (*models.Provider, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin provider update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT `+providerColumns+` FROM providers WHERE id = $1 FOR UPDATE
	`, uuid.UUID(providerID))
	provider, err := scanProvider(row)
	if err != nil {
		return nil, err
	}

	if err := validate(provider); err != nil {
		return nil, err
	}
	mutate(provider)

	methods, settings, err := marshalProviderJSON(provider)
	if err != nil {
		return nil, err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE providers
		SET name = $2, supported_methods = $3, endpoint = $4, settings = $5,
		    callback_secret_hash = $6, priority = $7, status = $8,
		    record_state = $9, updated_at = $10
		WHERE id = $1
	`,
		uuid.UUID(provider.ID),
		provider.Name,
		methods,
		provider.Endpoint,
		settings,
		provider.CallbackSecretHash,
		provider.Priority,
		string(provider.Status),
		string(provider.State),
		provider.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("update provider: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit provider update: %w", err)
	}
	return provider, nil
}

func marshalProviderJSON(provider *models.Provider) (methods, settings []byte, err error) {
	methods, err = json.Marshal(provider.SupportedMethods)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal supported methods: %w", err)
	}
	settings, err = json.Marshal(provider.Settings)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal settings: %w", err)
	}
	return methods, settings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProvider(row rowScanner) (*models.Provider, error) {
	var (
		p            models.Provider
		providerID   uuid.UUID
		ptype        string
		methodsJSON  []byte
		settingsJSON []byte
		status       string
		state        string
	)
	err := row.Scan(
		&providerID,
		&p.Name,
		&p.Code,
		&ptype,
		&methodsJSON,
		&p.Endpoint,
		&settingsJSON,
		&p.CallbackSecretHash,
		&p.Priority,
		&status,
		&state,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("provider not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("scan provider: %w", err)
	}

	p.ID = id.ProviderID(providerID)
	p.Type = id.ProviderType(ptype)
	p.Status = models.Status(status)
	p.State = models.RecordState(state)
	if err := json.Unmarshal(methodsJSON, &p.SupportedMethods); err != nil {
		return nil, fmt.Errorf("unmarshal supported methods: %w", err)
	}
	if err := json.Unmarshal(settingsJSON, &p.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return &p, nil
}

func collectProviders(rows *sql.Rows) ([]*models.Provider, error) {
	var out []*models.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate providers: %w", err)
	}
	return out, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
