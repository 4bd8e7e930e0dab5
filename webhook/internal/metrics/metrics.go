package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Webhook ingestion metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paystream_webhooks_received_total",
			Help: "Total number of webhook deliveries received",
		},
		[]string{"provider", "outcome"},
	)

	WebhookBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paystream_webhooks_bytes_total",
			Help: "Total bytes of webhook payload data received",
		},
	)

	SignatureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paystream_webhooks_signature_failures_total",
			Help: "Total number of signature verification failures",
		},
		[]string{"provider"},
	)

	DuplicateDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paystream_webhooks_duplicate_deliveries_total",
			Help: "Total number of idempotent replays collapsed to an existing event",
		},
		[]string{"provider"},
	)

	VerificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paystream_webhooks_verification_duration_seconds",
			Help:    "Duration of signature verification in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsEnqueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "paystream_webhooks_jobs_enqueued_total",
			Help: "Total number of processing jobs enqueued",
		},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paystream_webhooks_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
		[]string{"provider"},
	)
)
