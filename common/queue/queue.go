// Package queue defines the durable work-queue contract between the webhook
// ingestion service and the processing workers. Any at-least-once broker with
// lease/ack semantics can satisfy it; the NATS JetStream implementation lives
// in the nats subpackage and an in-memory implementation backs tests and
// single-node development.
package queue

import (
	"context"
	"errors"
	"time"
)

// Job is one leased unit of work. Attempt is the delivery attempt as counted
// by the broker, starting at 1.
type Job struct {
	ID        string
	Data      []byte
	Attempt   int
	Timestamp time.Time
}

// Handler processes a leased job. Returning nil acknowledges the job.
// Returning an error releases the lease for redelivery; wrap the error with
// Retry to control the redelivery delay, or with Discard to acknowledge the
// job despite the failure (terminal failures the worker records elsewhere).
type Handler func(ctx context.Context, job *Job) error

// Queue is the narrow durable-queue contract used by the pipeline and worker.
type Queue interface {
	// Enqueue appends a job payload. The job becomes visible to exactly one
	// consumer at a time via the broker's lease mechanism.
	Enqueue(ctx context.Context, data []byte) error

	// Consume starts delivering jobs to handler until the returned stop
	// function is called or ctx is cancelled. Multiple consumers may run
	// concurrently across processes.
	Consume(ctx context.Context, handler Handler) (stop func(), err error)

	// Close releases broker resources.
	Close() error
}

type retryError struct {
	err   error
	after time.Duration
}

func (e *retryError) Error() string { return e.err.Error() }
func (e *retryError) Unwrap() error { return e.err }

// Retry wraps err so the job is redelivered after the given delay.
func Retry(err error, after time.Duration) error {
	return &retryError{err: err, after: after}
}

// RetryAfter extracts the redelivery delay from an error produced by Retry.
func RetryAfter(err error) (time.Duration, bool) {
	var re *retryError
	if errors.As(err, &re) {
		return re.after, true
	}
	return 0, false
}

type discardError struct {
	err error
}

func (e *discardError) Error() string { return e.err.Error() }
func (e *discardError) Unwrap() error { return e.err }

// Discard wraps err so the job is acknowledged and never redelivered. Used
// for terminal failures that have been recorded durably elsewhere.
func Discard(err error) error {
	return &discardError{err: err}
}

// IsDiscard reports whether err was wrapped by Discard.
func IsDiscard(err error) bool {
	var de *discardError
	return errors.As(err, &de)
}
