package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paystream-labs/paystream/common/models"
)

// uniqueViolation is the postgres error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and verifies connectivity.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// CreateEvent inserts a new event row. The partial unique index on
// (provider, external_event_id) is the authoritative dedupe guard; a
// violation surfaces as ErrDuplicateEvent.
func (s *PostgresStore) CreateEvent(ctx context.Context, e *models.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events
			(id, provider, external_event_id, event_type, payload, signature, status, retry_count, received_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.Provider, e.ExternalEventID, e.EventType, e.Payload,
		e.Signature, e.Status, e.RetryCount, e.ReceivedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("failed to create event: %w", err)
	}

	return nil
}

const eventColumns = `
	id, provider, COALESCE(external_event_id, ''), event_type, payload,
	signature, status, COALESCE(error_message, ''), retry_count,
	received_at, processed_at`

func scanEvent(row pgx.Row) (*models.WebhookEvent, error) {
	e := &models.WebhookEvent{}
	err := row.Scan(
		&e.ID, &e.Provider, &e.ExternalEventID, &e.EventType, &e.Payload,
		&e.Signature, &e.Status, &e.ErrorMessage, &e.RetryCount,
		&e.ReceivedAt, &e.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetEvent retrieves an event by ID.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	query := fmt.Sprintf("SELECT %s FROM webhook_events WHERE id = $1", eventColumns)

	e, err := scanEvent(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// FindByExternalID looks up an event by its idempotency key.
func (s *PostgresStore) FindByExternalID(ctx context.Context, provider, externalEventID string) (*models.WebhookEvent, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM webhook_events WHERE provider = $1 AND external_event_id = $2", eventColumns)

	e, err := scanEvent(s.pool.QueryRow(ctx, query, provider, externalEventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return e, nil
}

// ListEvents retrieves a filtered, paginated event listing plus total count.
func (s *PostgresStore) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.WebhookEvent, int, error) {
	whereClause := "WHERE 1=1"
	args := []interface{}{}
	argPos := 1

	if filter.Provider != "" {
		whereClause += fmt.Sprintf(" AND provider = $%d", argPos)
		args = append(args, filter.Provider)
		argPos++
	}
	if filter.Status != "" {
		whereClause += fmt.Sprintf(" AND status = $%d", argPos)
		args = append(args, filter.Status)
		argPos++
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM webhook_events %s", whereClause)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT %s FROM webhook_events
		%s
		ORDER BY received_at DESC
		LIMIT $%d OFFSET $%d
	`, eventColumns, whereClause, argPos, argPos+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	events := []*models.WebhookEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return events, total, nil
}

// MarkProcessing claims an event for processing. Pending events and failed
// events awaiting a retry are both claimable; the status predicate makes the
// claim atomic, so a second worker, or a job for an already-processed event,
// gets ErrEventNotFound and skips.
func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_events
		SET status = $1
		WHERE id = $2 AND status IN ($3, $4)
	`

	result, err := s.pool.Exec(ctx, query, models.StatusProcessing, id, models.StatusPending, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark event processing: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkProcessed records successful completion.
func (s *PostgresStore) MarkProcessed(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_events
		SET status = $1, error_message = NULL, processed_at = $2
		WHERE id = $3
	`

	result, err := s.pool.Exec(ctx, query, models.StatusProcessed, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// MarkFailed records a handler failure and the running retry count.
func (s *PostgresStore) MarkFailed(ctx context.Context, id string, errorMessage string, retryCount int) error {
	query := `
		UPDATE webhook_events
		SET status = $1, error_message = $2, retry_count = $3
		WHERE id = $4
	`

	result, err := s.pool.Exec(ctx, query, models.StatusFailed, errorMessage, retryCount, id)
	if err != nil {
		return fmt.Errorf("failed to mark event failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ResetForRetry returns any not-yet-processed event to pending. Pending rows
// are eligible too: an event persisted whose enqueue then failed has no job
// in flight, and a retry is its only way back into the queue. Processed
// events are not eligible.
func (s *PostgresStore) ResetForRetry(ctx context.Context, id string) error {
	query := `
		UPDATE webhook_events
		SET status = $1, error_message = NULL
		WHERE id = $2 AND status <> $3
	`

	result, err := s.pool.Exec(ctx, query,
		models.StatusPending, id, models.StatusProcessed)
	if err != nil {
		return fmt.Errorf("failed to reset event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// GetCredential retrieves an active credential by its composite key.
func (s *PostgresStore) GetCredential(ctx context.Context, platform, credentialType, environment string) (*models.IntegrationCredential, error) {
	query := `
		SELECT platform, credential_type, environment, encrypted_value, active, expires_at, created_at, updated_at
		FROM integration_credentials
		WHERE platform = $1 AND credential_type = $2 AND environment = $3 AND active = true
	`

	c := &models.IntegrationCredential{}
	err := s.pool.QueryRow(ctx, query, platform, credentialType, environment).Scan(
		&c.Platform, &c.CredentialType, &c.Environment, &c.EncryptedValue,
		&c.Active, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if c.Expired(time.Now()) {
		return nil, ErrCredentialNotFound
	}

	return c, nil
}

// UpsertCredential inserts or replaces a credential. Only administrative
// flows call this; the value must already be a vault ciphertext envelope.
func (s *PostgresStore) UpsertCredential(ctx context.Context, cred *models.IntegrationCredential) error {
	query := `
		INSERT INTO integration_credentials
			(platform, credential_type, environment, encrypted_value, active, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (platform, credential_type, environment)
		DO UPDATE SET encrypted_value = EXCLUDED.encrypted_value,
		              active = EXCLUDED.active,
		              expires_at = EXCLUDED.expires_at,
		              updated_at = EXCLUDED.updated_at
	`

	_, err := s.pool.Exec(ctx, query,
		cred.Platform, cred.CredentialType, cred.Environment,
		cred.EncryptedValue, cred.Active, cred.ExpiresAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}
	return nil
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
