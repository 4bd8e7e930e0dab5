package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and single-node development.
// It honors lease semantics: a job is delivered to one consumer at a time and
// redelivered after a Retry error's delay.
type MemoryQueue struct {
	mu       sync.Mutex
	jobs     chan *Job
	attempts map[string]int
	seq      int
	closed   bool
	wg       sync.WaitGroup
}

// NewMemoryQueue creates a MemoryQueue with the given buffer size.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{
		jobs:     make(chan *Job, size),
		attempts: make(map[string]int),
	}
}

// Enqueue appends a job payload.
func (q *MemoryQueue) Enqueue(ctx context.Context, data []byte) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return fmt.Errorf("queue closed")
	}
	q.seq++
	job := &Job{
		ID:        fmt.Sprintf("mem-%d", q.seq),
		Data:      data,
		Attempt:   1,
		Timestamp: time.Now(),
	}
	q.attempts[job.ID] = 1
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of jobs currently waiting for delivery.
func (q *MemoryQueue) Len() int {
	return len(q.jobs)
}

// Consume delivers jobs to handler on a single goroutine until stopped.
func (q *MemoryQueue) Consume(ctx context.Context, handler Handler) (func(), error) {
	consumeCtx, cancel := context.WithCancel(ctx)

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-consumeCtx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				err := handler(consumeCtx, job)
				if err == nil || IsDiscard(err) {
					q.mu.Lock()
					delete(q.attempts, job.ID)
					q.mu.Unlock()
					continue
				}

				delay, hasDelay := RetryAfter(err)
				if !hasDelay {
					delay = 100 * time.Millisecond
				}
				q.redeliver(consumeCtx, job, delay)
			}
		}
	}()

	return cancel, nil
}

func (q *MemoryQueue) redeliver(ctx context.Context, job *Job, delay time.Duration) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.attempts[job.ID]++
	next := &Job{
		ID:        job.ID,
		Data:      job.Data,
		Attempt:   q.attempts[job.ID],
		Timestamp: job.Timestamp,
	}
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		select {
		case <-ctx.Done():
		case <-time.After(delay):
			select {
			case q.jobs <- next:
			case <-ctx.Done():
			}
		}
	}()
}

// Close stops accepting new jobs.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
