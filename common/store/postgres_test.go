package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/paystream-labs/paystream/common/models"
)

// setupTestDatabase starts a PostgreSQL testcontainer, applies the schema and
// returns a connected store.
func setupTestDatabase(t *testing.T) *PostgresStore {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("paystream_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, applySchema(connStr), "failed to run migrations")

	st, err := NewPostgresStore(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return st
}

// applySchema executes the init migration against a fresh database.
func applySchema(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func pgEvent(provider, externalID string) *models.WebhookEvent {
	return &models.WebhookEvent{
		ID:              uuid.New().String(),
		Provider:        provider,
		ExternalEventID: externalID,
		EventType:       "charge.succeeded",
		Payload:         []byte(`{"id":"` + externalID + `"}`),
		Signature:       "t=1,v1=abc",
		Status:          models.StatusPending,
		ReceivedAt:      time.Now().UTC(),
	}
}

func TestPostgresStore_EventLifecycle(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()

	e := pgEvent("stripe", "evt_lifecycle")
	require.NoError(t, st.CreateEvent(ctx, e))

	got, err := st.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "stripe", got.Provider)
	assert.Equal(t, "evt_lifecycle", got.ExternalEventID)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.JSONEq(t, string(e.Payload), string(got.Payload))
	assert.Nil(t, got.ProcessedAt)

	require.NoError(t, st.MarkProcessing(ctx, e.ID))
	require.NoError(t, st.MarkFailed(ctx, e.ID, "downstream unavailable", 1))

	got, err = st.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "downstream unavailable", got.ErrorMessage)
	assert.Equal(t, 1, got.RetryCount)

	// Failed rows are claimable again for the queued retry.
	require.NoError(t, st.MarkProcessing(ctx, e.ID))
	require.NoError(t, st.MarkProcessed(ctx, e.ID))

	got, err = st.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, got.Status)
	assert.Empty(t, got.ErrorMessage)
	require.NotNil(t, got.ProcessedAt)

	// Processed is terminal for both claim and reset.
	assert.ErrorIs(t, st.MarkProcessing(ctx, e.ID), ErrEventNotFound)
	assert.ErrorIs(t, st.ResetForRetry(ctx, e.ID), ErrEventNotFound)
}

func TestPostgresStore_DuplicateExternalID(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()

	first := pgEvent("stripe", "evt_dup")
	require.NoError(t, st.CreateEvent(ctx, first))

	second := pgEvent("stripe", "evt_dup")
	assert.ErrorIs(t, st.CreateEvent(ctx, second), ErrDuplicateEvent)

	// The index is partial: rows without an external id never collide.
	require.NoError(t, st.CreateEvent(ctx, pgEvent("hotmart", "")))
	require.NoError(t, st.CreateEvent(ctx, pgEvent("hotmart", "")))

	found, err := st.FindByExternalID(ctx, "stripe", "evt_dup")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = st.FindByExternalID(ctx, "stripe", "evt_missing")
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestPostgresStore_ListEvents(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		e := pgEvent("stripe", fmt.Sprintf("evt_list_%d", i))
		e.ReceivedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, st.CreateEvent(ctx, e))
	}
	failed := pgEvent("cartpanda", "77001")
	require.NoError(t, st.CreateEvent(ctx, failed))
	require.NoError(t, st.MarkProcessing(ctx, failed.ID))
	require.NoError(t, st.MarkFailed(ctx, failed.ID, "boom", 1))

	events, total, err := st.ListEvents(ctx, models.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, events, 4)

	events, total, err = st.ListEvents(ctx, models.EventFilter{Provider: "stripe"})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	// Newest first.
	assert.Equal(t, "evt_list_2", events[0].ExternalEventID)

	events, total, err = st.ListEvents(ctx, models.EventFilter{Status: models.StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, failed.ID, events[0].ID)

	events, total, err = st.ListEvents(ctx, models.EventFilter{Provider: "stripe", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, events, 1)
	assert.Equal(t, "evt_list_0", events[0].ExternalEventID)
}

func TestPostgresStore_ResetForRetry(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()

	e := pgEvent("stripe", "evt_reset")
	require.NoError(t, st.CreateEvent(ctx, e))
	require.NoError(t, st.MarkProcessing(ctx, e.ID))
	require.NoError(t, st.MarkFailed(ctx, e.ID, "boom", 3))

	require.NoError(t, st.ResetForRetry(ctx, e.ID))

	got, err := st.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.Empty(t, got.ErrorMessage)
	// Retry count survives the reset for operator visibility.
	assert.Equal(t, 3, got.RetryCount)

	// Pending rows stay eligible; the stranded-event recovery path resets
	// them before re-enqueueing.
	require.NoError(t, st.ResetForRetry(ctx, e.ID))
}

func TestPostgresStore_Credentials(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()

	cred := &models.IntegrationCredential{
		Platform:       "stripe",
		CredentialType: models.CredentialWebhookSecret,
		Environment:    "production",
		EncryptedValue: "dmF1bHQtZW52ZWxvcGU=",
		Active:         true,
	}
	require.NoError(t, st.UpsertCredential(ctx, cred))

	got, err := st.GetCredential(ctx, "stripe", models.CredentialWebhookSecret, "production")
	require.NoError(t, err)
	assert.Equal(t, "dmF1bHQtZW52ZWxvcGU=", got.EncryptedValue)
	assert.True(t, got.Active)

	_, err = st.GetCredential(ctx, "stripe", models.CredentialWebhookSecret, "sandbox")
	assert.ErrorIs(t, err, ErrCredentialNotFound)

	// Upsert on the composite key replaces the value.
	cred.EncryptedValue = "dmF1bHQtZW52ZWxvcGUtMg=="
	require.NoError(t, st.UpsertCredential(ctx, cred))
	got, err = st.GetCredential(ctx, "stripe", models.CredentialWebhookSecret, "production")
	require.NoError(t, err)
	assert.Equal(t, "dmF1bHQtZW52ZWxvcGUtMg==", got.EncryptedValue)

	// Deactivation hides the credential from the pipeline.
	cred.Active = false
	require.NoError(t, st.UpsertCredential(ctx, cred))
	_, err = st.GetCredential(ctx, "stripe", models.CredentialWebhookSecret, "production")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestPostgresStore_ExpiredCredential(t *testing.T) {
	st := setupTestDatabase(t)
	ctx := context.Background()

	expired := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, st.UpsertCredential(ctx, &models.IntegrationCredential{
		Platform:       "cartpanda",
		CredentialType: models.CredentialWebhookSecret,
		Environment:    "production",
		EncryptedValue: "x",
		Active:         true,
		ExpiresAt:      &expired,
	}))

	_, err := st.GetCredential(ctx, "cartpanda", models.CredentialWebhookSecret, "production")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}
