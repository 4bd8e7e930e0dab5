// Package service implements the webhook ingestion pipeline: verify,
// deduplicate, persist, enqueue.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/models"
	"github.com/paystream-labs/paystream/common/queue"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/common/vault"
	"github.com/paystream-labs/paystream/webhook/internal/metrics"
	"github.com/paystream-labs/paystream/webhook/pkg/verifier"
)

var (
	// ErrUnknownProvider means no platform record exists for the provider id.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrUnsupportedProvider means the platform exists but no verification
	// strategy is registered for it.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingSecret means no active webhook secret is configured.
	ErrMissingSecret = errors.New("webhook secret not configured")

	// ErrInvalidSignature means signature verification failed.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrInvalidPayload means the body could not be parsed after a
	// successful signature check.
	ErrInvalidPayload = errors.New("invalid payload")
)

// IngestResult is the outcome of an accepted delivery.
type IngestResult struct {
	EventID string
	// Duplicate is true when the delivery collapsed onto an already-ingested
	// event; no new row or job was created.
	Duplicate bool
}

// Config holds pipeline behavior settings.
type Config struct {
	// Providers are the platform identifiers with active integrations.
	// Deliveries for any other provider fail with ErrUnknownProvider.
	Providers []string

	// Environment selects which credential rows are read (e.g. "production",
	// "sandbox").
	Environment string

	// SkipVerification disables signature checks entirely. Troubleshooting
	// escape hatch only; the constructor refuses it in production and every
	// use is logged at warning level.
	SkipVerification bool
}

// IngestService drives the ingestion pipeline.
type IngestService struct {
	cfg      Config
	known    map[string]bool
	registry *verifier.Registry
	codec    *vault.Codec
	store    store.Store
	jobs     queue.Queue
	logger   *logging.Logger
}

// NewIngestService wires the pipeline. It fails if the skip-verification
// escape hatch is requested in a production environment.
func NewIngestService(cfg Config, registry *verifier.Registry, codec *vault.Codec, st store.Store, jobs queue.Queue, logger *logging.Logger) (*IngestService, error) {
	if cfg.SkipVerification && cfg.Environment == "production" {
		return nil, fmt.Errorf("signature verification cannot be disabled in production")
	}
	if cfg.SkipVerification {
		logger.Warn("SIGNATURE VERIFICATION IS DISABLED - all webhook deliveries will be accepted unverified",
			"environment", cfg.Environment)
	}

	known := make(map[string]bool, len(cfg.Providers))
	for _, p := range cfg.Providers {
		known[p] = true
	}

	return &IngestService{
		cfg:      cfg,
		known:    known,
		registry: registry,
		codec:    codec,
		store:    st,
		jobs:     jobs,
		logger:   logger,
	}, nil
}

// Ingest runs the full pipeline for one delivery. On success exactly one
// event row and one job exist for the delivery; verification or decryption
// failures abort before anything is committed, so provider-side HTTP retries
// are safe.
func (s *IngestService) Ingest(ctx context.Context, providerID, signature string, rawBody []byte) (*IngestResult, error) {
	if !s.known[providerID] {
		return nil, ErrUnknownProvider
	}

	v, ok := s.registry.Lookup(providerID)
	if !ok {
		return nil, ErrUnsupportedProvider
	}

	if s.cfg.SkipVerification {
		s.logger.WarnContext(ctx, "accepting webhook without signature verification",
			logging.Provider(providerID))
	} else {
		secret, err := s.resolveSecret(ctx, providerID)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		verified := v.Verify(signature, rawBody, secret)
		metrics.VerificationDuration.Observe(time.Since(start).Seconds())

		if !verified {
			metrics.SignatureFailures.WithLabelValues(providerID).Inc()
			s.logger.WarnContext(ctx, "webhook signature verification failed",
				logging.Provider(providerID))
			return nil, ErrInvalidSignature
		}
	}

	envelope, err := v.ExtractEvent(rawBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	// Fast-path dedupe. The unique index in storage is the authoritative
	// guard; this lookup just avoids burning an insert on obvious replays.
	if envelope.ExternalID != "" {
		existing, err := s.store.FindByExternalID(ctx, providerID, envelope.ExternalID)
		if err == nil {
			metrics.DuplicateDeliveries.WithLabelValues(providerID).Inc()
			return &IngestResult{EventID: existing.ID, Duplicate: true}, nil
		}
		if !errors.Is(err, store.ErrEventNotFound) {
			return nil, fmt.Errorf("dedupe lookup: %w", err)
		}
	}

	event := &models.WebhookEvent{
		ID:              uuid.New().String(),
		Provider:        providerID,
		ExternalEventID: envelope.ExternalID,
		EventType:       envelope.Type,
		Payload:         json.RawMessage(rawBody),
		Signature:       signature,
		Status:          models.StatusPending,
		ReceivedAt:      time.Now(),
	}

	if err := s.store.CreateEvent(ctx, event); err != nil {
		if errors.Is(err, store.ErrDuplicateEvent) {
			// Lost the insert race to a concurrent delivery; return the
			// winner's id so both calls report the same event.
			existing, ferr := s.store.FindByExternalID(ctx, providerID, envelope.ExternalID)
			if ferr != nil {
				return nil, fmt.Errorf("duplicate event lookup: %w", ferr)
			}
			metrics.DuplicateDeliveries.WithLabelValues(providerID).Inc()
			return &IngestResult{EventID: existing.ID, Duplicate: true}, nil
		}
		return nil, fmt.Errorf("persist event: %w", err)
	}

	job := models.ProcessingJob{
		EventID:   event.ID,
		Provider:  providerID,
		EventType: envelope.Type,
		Attempt:   1,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := s.jobs.Enqueue(ctx, payload); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	metrics.JobsEnqueued.Inc()

	s.logger.InfoContext(ctx, "webhook event ingested",
		logging.Provider(providerID),
		logging.EventID(event.ID),
		logging.EventType(envelope.Type))

	return &IngestResult{EventID: event.ID}, nil
}

// resolveSecret loads and decrypts the provider's webhook signing secret.
func (s *IngestService) resolveSecret(ctx context.Context, providerID string) (string, error) {
	cred, err := s.store.GetCredential(ctx, providerID, models.CredentialWebhookSecret, s.cfg.Environment)
	if err != nil {
		if errors.Is(err, store.ErrCredentialNotFound) {
			return "", ErrMissingSecret
		}
		return "", fmt.Errorf("load credential: %w", err)
	}

	secret, err := s.codec.Decrypt(cred.EncryptedValue)
	if err != nil {
		// Never silently swallowed: a stored credential that fails to
		// decrypt means key misconfiguration or tampering.
		s.logger.ErrorContext(ctx, "stored webhook secret failed to decrypt",
			logging.Provider(providerID))
		return "", err
	}

	return secret, nil
}

// ListEvents exposes the admin event listing.
func (s *IngestService) ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.WebhookEvent, int, error) {
	return s.store.ListEvents(ctx, filter)
}

// GetEvent exposes the admin event detail view.
func (s *IngestService) GetEvent(ctx context.Context, id string) (*models.WebhookEvent, error) {
	return s.store.GetEvent(ctx, id)
}

// RetryEvent resets a failed event to pending and re-enqueues it. Pending
// events are accepted too: if the original enqueue failed after the insert,
// this is the only way to get the stranded row a job. Safe against races
// with a concurrent worker: already-processed events are rejected here, and
// the worker re-checks status at dequeue time.
func (s *IngestService) RetryEvent(ctx context.Context, id string) error {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if event.Status == models.StatusProcessed {
		return fmt.Errorf("event %s already processed", id)
	}

	if err := s.store.ResetForRetry(ctx, id); err != nil {
		return err
	}

	job := models.ProcessingJob{
		EventID:   event.ID,
		Provider:  event.Provider,
		EventType: event.EventType,
		Attempt:   event.RetryCount + 1,
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := s.jobs.Enqueue(ctx, payload); err != nil {
		return fmt.Errorf("enqueue retry job: %w", err)
	}

	s.logger.InfoContext(ctx, "webhook event re-enqueued for retry",
		logging.EventID(id),
		logging.Provider(event.Provider))

	return nil
}
