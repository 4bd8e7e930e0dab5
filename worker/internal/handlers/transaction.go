package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/models"
)

// Transaction is a normalized payment record extracted from a provider event.
type Transaction struct {
	EventID    string
	Provider   string
	ExternalID string
	Type       string
	Amount     json.Number
	Currency   string
	OccurredAt time.Time
}

// Ledger records normalized transactions. Implementations post to the
// accounting system of record.
type Ledger interface {
	RecordTransaction(ctx context.Context, tx *Transaction) error
}

// TransactionHandler normalizes payment events and posts them to the ledger.
type TransactionHandler struct {
	ledger Ledger
	logger *logging.Logger
}

func NewTransactionHandler(ledger Ledger, logger *logging.Logger) *TransactionHandler {
	return &TransactionHandler{ledger: ledger, logger: logger}
}

// TransactionEventTypes are the normalized types this handler serves.
var TransactionEventTypes = []string{
	"payment_intent.succeeded",
	"charge.succeeded",
	"charge.refunded",
	"invoice.paid",
	"order.paid",
	"order.refunded",
	"PURCHASE_COMPLETE",
	"PURCHASE_REFUNDED",
}

func (h *TransactionHandler) Handle(ctx context.Context, event *models.WebhookEvent) error {
	tx, err := extractTransaction(event)
	if err != nil {
		return fmt.Errorf("extract transaction from %s event: %w", event.Provider, err)
	}

	if err := h.ledger.RecordTransaction(ctx, tx); err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}

	h.logger.InfoContext(ctx, "transaction recorded",
		logging.Provider(event.Provider),
		logging.EventID(event.ID),
		logging.EventType(event.EventType))
	return nil
}

// extractTransaction pulls amount and currency out of the provider payload.
// Each provider nests them differently; missing fields leave zero values
// rather than failing, since the raw payload is preserved on the event.
func extractTransaction(event *models.WebhookEvent) (*Transaction, error) {
	tx := &Transaction{
		EventID:    event.ID,
		Provider:   event.Provider,
		ExternalID: event.ExternalEventID,
		Type:       event.EventType,
		OccurredAt: event.ReceivedAt,
	}

	switch event.Provider {
	case "stripe":
		var p struct {
			Data struct {
				Object struct {
					Amount   json.Number `json:"amount"`
					Currency string      `json:"currency"`
				} `json:"object"`
			} `json:"data"`
		}
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, err
		}
		tx.Amount = p.Data.Object.Amount
		tx.Currency = p.Data.Object.Currency

	case "cartpanda":
		// cartpanda serializes totals as quoted decimal strings.
		var p struct {
			Order struct {
				Total    json.RawMessage `json:"total"`
				Currency string          `json:"currency"`
			} `json:"order"`
		}
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, err
		}
		tx.Amount = rawNumber(p.Order.Total)
		tx.Currency = p.Order.Currency

	case "hotmart":
		var p struct {
			Data struct {
				Purchase struct {
					Price struct {
						Value        json.Number `json:"value"`
						CurrencyCode string      `json:"currency_code"`
					} `json:"price"`
				} `json:"purchase"`
			} `json:"data"`
		}
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return nil, err
		}
		tx.Amount = p.Data.Purchase.Price.Value
		tx.Currency = p.Data.Purchase.Price.CurrencyCode

	default:
		if err := json.Unmarshal(event.Payload, &struct{}{}); err != nil {
			return nil, err
		}
	}

	return tx, nil
}

// rawNumber normalizes a JSON number or quoted numeric string.
func rawNumber(raw json.RawMessage) json.Number {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return json.Number(s)
	}
	return ""
}
