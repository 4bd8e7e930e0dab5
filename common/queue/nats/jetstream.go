package nats

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/paystream-labs/paystream/common/queue"
)

// StreamConfig defines the JetStream stream backing a work queue.
type StreamConfig struct {
	// Name is the stream name.
	Name string

	// Subject is the single subject this queue publishes and consumes.
	Subject string

	// MaxAge is the maximum age of messages in the stream.
	MaxAge time.Duration

	// MaxMsgs is the maximum number of messages in the stream.
	MaxMsgs int64
}

// ConsumerConfig defines the durable consumer shared by all workers.
type ConsumerConfig struct {
	// Name is the durable consumer name.
	Name string

	// AckWait is the lease duration before an unacknowledged job is redelivered.
	AckWait time.Duration

	// MaxDeliver is the maximum delivery attempts before the broker gives up.
	MaxDeliver int

	// MaxAckPending bounds unacknowledged jobs across all workers.
	MaxAckPending int
}

// JobsStream is the stream configuration for webhook processing jobs.
// WorkQueuePolicy gives each job to exactly one consumer.
var JobsStream = StreamConfig{
	Name:    "WEBHOOK_JOBS",
	Subject: "webhooks.jobs",
	MaxAge:  24 * time.Hour,
	MaxMsgs: 1000000,
}

// DefaultConsumerConfig returns sensible defaults for the worker consumer.
func DefaultConsumerConfig(name string) ConsumerConfig {
	return ConsumerConfig{
		Name:          name,
		AckWait:       60 * time.Second,
		MaxDeliver:    10,
		MaxAckPending: 100,
	}
}

// JetStreamQueue implements queue.Queue on a JetStream work-queue stream with
// a durable consumer and explicit acks.
type JetStreamQueue struct {
	client   *Client
	js       jetstream.JetStream
	stream   StreamConfig
	consumer ConsumerConfig
}

// NewJetStreamQueue creates (or updates) the stream and durable consumer and
// returns a queue bound to them.
func NewJetStreamQueue(ctx context.Context, client *Client, streamCfg StreamConfig, consumerCfg ConsumerConfig) (*JetStreamQueue, error) {
	js, err := jetstream.New(client.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      streamCfg.Name,
		Subjects:  []string{streamCfg.Subject},
		MaxAge:    streamCfg.MaxAge,
		MaxMsgs:   streamCfg.MaxMsgs,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update stream %s: %w", streamCfg.Name, err)
	}

	_, err = stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          consumerCfg.Name,
		Durable:       consumerCfg.Name,
		FilterSubject: streamCfg.Subject,
		AckWait:       consumerCfg.AckWait,
		MaxDeliver:    consumerCfg.MaxDeliver,
		MaxAckPending: consumerCfg.MaxAckPending,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/update consumer %s: %w", consumerCfg.Name, err)
	}

	return &JetStreamQueue{
		client:   client,
		js:       js,
		stream:   streamCfg,
		consumer: consumerCfg,
	}, nil
}

// Enqueue publishes a job payload and waits for the stream acknowledgment.
func (q *JetStreamQueue) Enqueue(ctx context.Context, data []byte) error {
	if _, err := q.js.Publish(ctx, q.stream.Subject, data); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Consume starts delivering jobs to handler. A nil handler result acks the
// message; queue.Retry errors nak with the requested delay; queue.Discard
// errors ack so the broker never redelivers.
func (q *JetStreamQueue) Consume(ctx context.Context, handler queue.Handler) (func(), error) {
	stream, err := q.js.Stream(ctx, q.stream.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get stream %s: %w", q.stream.Name, err)
	}

	consumer, err := stream.Consumer(ctx, q.consumer.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to get consumer %s: %w", q.consumer.Name, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		job := &queue.Job{
			Data:      msg.Data(),
			Attempt:   1,
			Timestamp: time.Now(),
		}

		if meta, err := msg.Metadata(); err == nil {
			job.ID = fmt.Sprintf("%s-%d", q.stream.Name, meta.Sequence.Stream)
			job.Attempt = int(meta.NumDelivered)
			job.Timestamp = meta.Timestamp
		}

		err := handler(consumeCtx, job)
		switch {
		case err == nil:
			_ = msg.Ack()
		case queue.IsDiscard(err):
			_ = msg.Ack()
		default:
			delay, ok := queue.RetryAfter(err)
			if !ok {
				delay = 5 * time.Second
			}
			if nakErr := msg.NakWithDelay(delay); nakErr != nil {
				slog.Warn("failed to nak job", slog.String("error", nakErr.Error()))
			}
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	return func() {
		cancel()
		cons.Stop()
	}, nil
}

// Close closes the underlying NATS connection.
func (q *JetStreamQueue) Close() error {
	return q.client.Close()
}
