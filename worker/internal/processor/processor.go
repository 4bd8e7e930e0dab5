// Package processor consumes the webhook job queue and drives events through
// the pending, processing, processed and failed states.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/models"
	"github.com/paystream-labs/paystream/common/queue"
	"github.com/paystream-labs/paystream/common/store"
	"github.com/paystream-labs/paystream/worker/internal/handlers"
	"github.com/paystream-labs/paystream/worker/internal/metrics"
)

// Config holds processing behavior settings.
type Config struct {
	// MaxRetries is the number of attempts before an event is left failed
	// for operator attention.
	MaxRetries int

	// HandlerTimeout bounds a single handler invocation.
	HandlerTimeout time.Duration

	// BackoffBase is the first retry delay; each further attempt doubles it.
	BackoffBase time.Duration

	// BackoffCap bounds the retry delay growth.
	BackoffCap time.Duration
}

// DefaultConfig returns production processing defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     5,
		HandlerTimeout: 30 * time.Second,
		BackoffBase:    5 * time.Second,
		BackoffCap:     5 * time.Minute,
	}
}

// Processor claims queued events and dispatches them to business handlers.
// Multiple processors can run against the same queue; the atomic pending to
// processing transition in the store guarantees single execution.
type Processor struct {
	cfg      Config
	store    store.EventStore
	jobs     queue.Queue
	registry *handlers.Registry
	logger   *logging.Logger
}

func New(cfg Config, st store.EventStore, jobs queue.Queue, registry *handlers.Registry, logger *logging.Logger) *Processor {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = DefaultConfig().HandlerTimeout
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultConfig().BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = DefaultConfig().BackoffCap
	}

	return &Processor{
		cfg:      cfg,
		store:    st,
		jobs:     jobs,
		registry: registry,
		logger:   logger,
	}
}

// Start begins consuming jobs. The returned stop function halts consumption;
// in-flight handlers run to completion.
func (p *Processor) Start(ctx context.Context) (func(), error) {
	return p.jobs.Consume(ctx, p.handleJob)
}

func (p *Processor) handleJob(ctx context.Context, job *queue.Job) error {
	var pj models.ProcessingJob
	if err := json.Unmarshal(job.Data, &pj); err != nil {
		// A job that never parses will never parse; drop it.
		p.logger.ErrorContext(ctx, "discarding malformed job payload", logging.Error(err))
		return queue.Discard(fmt.Errorf("unmarshal job: %w", err))
	}

	event, err := p.store.GetEvent(ctx, pj.EventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			p.logger.WarnContext(ctx, "job references missing event, discarding",
				logging.EventID(pj.EventID))
			return queue.Discard(err)
		}
		// Transient store failure; let the broker redeliver.
		return queue.Retry(fmt.Errorf("load event: %w", err), p.cfg.BackoffBase)
	}

	// Claim the event. Losing the claim means another worker already holds
	// it or an operator resolved it; either way this delivery is done.
	if err := p.store.MarkProcessing(ctx, event.ID); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			p.logger.DebugContext(ctx, "event already claimed, skipping",
				logging.EventID(event.ID),
				logging.Status(string(event.Status)))
			return nil
		}
		return queue.Retry(fmt.Errorf("claim event: %w", err), p.cfg.BackoffBase)
	}

	// The payload attempt carries history across re-enqueues (an admin
	// retry of an already-failed event starts above 1); the broker's
	// delivery count advances it from there.
	attempt := job.Attempt
	if pj.Attempt > 1 {
		attempt = pj.Attempt + job.Attempt - 1
	}

	start := time.Now()
	err = p.dispatch(ctx, event)
	metrics.ProcessingDuration.WithLabelValues(event.Provider).Observe(time.Since(start).Seconds())

	if err == nil {
		if merr := p.store.MarkProcessed(ctx, event.ID); merr != nil {
			// The handler side effects are committed; retrying would run
			// them again. Surface loudly and drop the job.
			p.logger.ErrorContext(ctx, "event processed but status update failed",
				logging.EventID(event.ID), logging.Error(merr))
			return queue.Discard(merr)
		}
		metrics.EventsProcessed.WithLabelValues(event.Provider, "processed").Inc()
		p.logger.InfoContext(ctx, "event processed",
			logging.Provider(event.Provider),
			logging.EventID(event.ID),
			logging.EventType(event.EventType),
			logging.Attempt(attempt))
		return nil
	}

	return p.fail(ctx, event, attempt, err)
}

// dispatch runs the registered handler under the configured timeout.
func (p *Processor) dispatch(ctx context.Context, event *models.WebhookEvent) error {
	handlerCtx, cancel := context.WithTimeout(ctx, p.cfg.HandlerTimeout)
	defer cancel()

	return p.registry.Resolve(event.EventType).Handle(handlerCtx, event)
}

// fail records the failure and decides between retry and giving up.
func (p *Processor) fail(ctx context.Context, event *models.WebhookEvent, attempt int, cause error) error {
	if err := p.store.MarkFailed(ctx, event.ID, cause.Error(), attempt); err != nil {
		p.logger.ErrorContext(ctx, "failed to record event failure",
			logging.EventID(event.ID), logging.Error(err))
	}

	if attempt >= p.cfg.MaxRetries {
		metrics.EventsProcessed.WithLabelValues(event.Provider, "failed").Inc()
		p.logger.ErrorContext(ctx, "event failed permanently, giving up",
			logging.Provider(event.Provider),
			logging.EventID(event.ID),
			logging.EventType(event.EventType),
			logging.Attempt(attempt),
			logging.Error(cause))
		return queue.Discard(cause)
	}

	delay := p.backoff(attempt)
	metrics.EventRetries.WithLabelValues(event.Provider).Inc()
	p.logger.WarnContext(ctx, "event processing failed, scheduling retry",
		logging.Provider(event.Provider),
		logging.EventID(event.ID),
		logging.Attempt(attempt),
		logging.Error(cause),
		"retry_in", delay.String())
	return queue.Retry(cause, delay)
}

// backoff doubles the base delay per attempt, capped.
func (p *Processor) backoff(attempt int) time.Duration {
	delay := p.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.cfg.BackoffCap {
			return p.cfg.BackoffCap
		}
	}
	return delay
}
