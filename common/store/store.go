// Package store persists webhook events and integration credentials.
package store

import (
	"context"
	"errors"

	"github.com/paystream-labs/paystream/common/models"
)

var (
	ErrEventNotFound      = errors.New("webhook event not found")
	ErrDuplicateEvent     = errors.New("webhook event already exists for this external id")
	ErrCredentialNotFound = errors.New("integration credential not found")
)

// EventStore persists WebhookEvents. CreateEvent must enforce the
// (provider, external_event_id) uniqueness constraint so concurrent
// deliveries of the same event cannot both insert; callers treat
// ErrDuplicateEvent as "already ingested" and re-read the existing row.
type EventStore interface {
	CreateEvent(ctx context.Context, event *models.WebhookEvent) error
	GetEvent(ctx context.Context, id string) (*models.WebhookEvent, error)
	FindByExternalID(ctx context.Context, provider, externalEventID string) (*models.WebhookEvent, error)
	ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.WebhookEvent, int, error)

	// MarkProcessing transitions pending or failed -> processing. Failed
	// events stay claimable so queued retries can pick them back up.
	// Returns ErrEventNotFound if the event is missing, already claimed or
	// already processed, which lets a racing worker skip it.
	MarkProcessing(ctx context.Context, id string) error
	MarkProcessed(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errorMessage string, retryCount int) error

	// ResetForRetry transitions any not-yet-processed event back to pending
	// and clears the error message. Pending rows are eligible so an event
	// whose enqueue failed after the insert can be re-queued. Processed
	// events are left untouched.
	ResetForRetry(ctx context.Context, id string) error

	Close() error
}

// CredentialStore reads and writes encrypted integration credentials.
// The ingestion core only reads; writes come from administrative flows.
type CredentialStore interface {
	GetCredential(ctx context.Context, platform, credentialType, environment string) (*models.IntegrationCredential, error)
	UpsertCredential(ctx context.Context, cred *models.IntegrationCredential) error
}

// Store combines both stores; the postgres and memory implementations
// satisfy it.
type Store interface {
	EventStore
	CredentialStore
}
