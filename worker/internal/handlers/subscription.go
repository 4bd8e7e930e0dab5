package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/models"
)

// SubscriptionChange is a normalized subscription lifecycle event.
type SubscriptionChange struct {
	EventID        string
	Provider       string
	SubscriptionID string
	CustomerID     string
	Status         string
}

// SubscriptionBook tracks subscription state transitions. Implementations
// update entitlements in the customer system of record.
type SubscriptionBook interface {
	ApplyChange(ctx context.Context, change *SubscriptionChange) error
}

// SubscriptionHandler normalizes subscription lifecycle events.
type SubscriptionHandler struct {
	book   SubscriptionBook
	logger *logging.Logger
}

func NewSubscriptionHandler(book SubscriptionBook, logger *logging.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{book: book, logger: logger}
}

// SubscriptionEventTypes are the normalized types this handler serves.
var SubscriptionEventTypes = []string{
	"customer.subscription.created",
	"customer.subscription.updated",
	"customer.subscription.deleted",
	"subscription.created",
	"subscription.cancelled",
	"SUBSCRIPTION_CANCELLATION",
	"SWITCH_PLAN",
}

func (h *SubscriptionHandler) Handle(ctx context.Context, event *models.WebhookEvent) error {
	change := &SubscriptionChange{
		EventID:  event.ID,
		Provider: event.Provider,
	}

	// Stripe nests the subscription under data.object; other providers put
	// identifiers near the top level. Parse leniently and keep whatever
	// identifiers the payload carries.
	var p struct {
		Data struct {
			Object struct {
				ID       string `json:"id"`
				Customer string `json:"customer"`
				Status   string `json:"status"`
			} `json:"object"`
			Subscription string `json:"subscription"`
		} `json:"data"`
		Subscription struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"subscription"`
	}
	if err := json.Unmarshal(event.Payload, &p); err != nil {
		return fmt.Errorf("parse subscription payload: %w", err)
	}

	switch {
	case p.Data.Object.ID != "":
		change.SubscriptionID = p.Data.Object.ID
		change.CustomerID = p.Data.Object.Customer
		change.Status = p.Data.Object.Status
	case p.Subscription.ID != "":
		change.SubscriptionID = p.Subscription.ID
		change.Status = p.Subscription.Status
	default:
		change.SubscriptionID = p.Data.Subscription
	}
	if change.Status == "" {
		change.Status = event.EventType
	}

	if err := h.book.ApplyChange(ctx, change); err != nil {
		return fmt.Errorf("apply subscription change: %w", err)
	}

	h.logger.InfoContext(ctx, "subscription change applied",
		logging.Provider(event.Provider),
		logging.EventID(event.ID),
		logging.EventType(event.EventType))
	return nil
}
