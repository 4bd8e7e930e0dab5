// Package models holds the core data types shared by the webhook and worker
// services.
package models

import (
	"encoding/json"
	"time"
)

// EventStatus is the processing state of a WebhookEvent.
type EventStatus string

const (
	StatusPending    EventStatus = "pending"
	StatusProcessing EventStatus = "processing"
	StatusProcessed  EventStatus = "processed"
	StatusFailed     EventStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s EventStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusProcessed, StatusFailed:
		return true
	}
	return false
}

// WebhookEvent is one verified provider notification. At most one row exists
// per (provider, external_event_id); events without a natural external id are
// stored with a null external id and skip deduplication.
type WebhookEvent struct {
	ID              string          `json:"id"`
	Provider        string          `json:"provider"`
	ExternalEventID string          `json:"external_event_id"`
	EventType       string          `json:"event_type"`
	Payload         json.RawMessage `json:"payload"`
	Signature       string          `json:"signature,omitempty"`
	Status          EventStatus     `json:"status"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	RetryCount      int             `json:"retry_count"`
	ReceivedAt      time.Time       `json:"received_at"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
}

// ProcessingJob is the queue payload referencing a persisted event. Attempt
// seeds the worker's attempt counter; re-enqueues of an already-retried
// event start above 1 so the retry budget carries over.
type ProcessingJob struct {
	EventID   string `json:"event_id"`
	Provider  string `json:"provider"`
	EventType string `json:"event_type"`
	Attempt   int    `json:"attempt"`
}

// EventFilter narrows admin event listings.
type EventFilter struct {
	Provider string
	Status   EventStatus
	Limit    int
	Offset   int
}
