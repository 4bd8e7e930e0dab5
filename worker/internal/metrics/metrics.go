package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event processing metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paystream_worker_events_total",
			Help: "Total number of events reaching a terminal state",
		},
		[]string{"provider", "outcome"},
	)

	EventRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paystream_worker_event_retries_total",
			Help: "Total number of event processing retries scheduled",
		},
		[]string{"provider"},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "paystream_worker_processing_duration_seconds",
			Help:    "Duration of business handler execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
)
