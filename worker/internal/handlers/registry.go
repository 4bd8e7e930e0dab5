// Package handlers routes verified webhook events to business logic by
// normalized event type.
package handlers

import (
	"context"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/models"
)

// EventHandler processes one verified webhook event. Returning an error
// marks the event failed and schedules a retry.
type EventHandler interface {
	Handle(ctx context.Context, event *models.WebhookEvent) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *models.WebhookEvent) error

func (f HandlerFunc) Handle(ctx context.Context, event *models.WebhookEvent) error {
	return f(ctx, event)
}

// Registry maps event types to handlers. Unmatched types fall through to a
// default handler so unrecognized provider events are still acknowledged.
type Registry struct {
	byType   map[string]EventHandler
	fallback EventHandler
}

// NewRegistry builds a registry with the given fallback handler.
func NewRegistry(fallback EventHandler) *Registry {
	return &Registry{
		byType:   make(map[string]EventHandler),
		fallback: fallback,
	}
}

// Register binds a handler to one or more event types. Later registrations
// for the same type replace earlier ones.
func (r *Registry) Register(handler EventHandler, eventTypes ...string) {
	for _, t := range eventTypes {
		r.byType[t] = handler
	}
}

// Resolve returns the handler for an event type, falling back to the
// default handler.
func (r *Registry) Resolve(eventType string) EventHandler {
	if h, ok := r.byType[eventType]; ok {
		return h
	}
	return r.fallback
}

// NewLogHandler returns a handler that records the event and succeeds. Used
// as the fallback so unrecognized events reach the processed state instead
// of retrying forever.
func NewLogHandler(logger *logging.Logger) EventHandler {
	return HandlerFunc(func(ctx context.Context, event *models.WebhookEvent) error {
		logger.InfoContext(ctx, "no handler registered for event type, acknowledging",
			logging.Provider(event.Provider),
			logging.EventID(event.ID),
			logging.EventType(event.EventType))
		return nil
	})
}
