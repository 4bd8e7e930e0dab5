package handlers

import (
	"context"

	"github.com/paystream-labs/paystream/common/logging"
)

// LogLedger is a Ledger that only records transactions to the log. Stands in
// until the accounting integration ships.
type LogLedger struct {
	logger *logging.Logger
}

func NewLogLedger(logger *logging.Logger) *LogLedger {
	return &LogLedger{logger: logger}
}

func (l *LogLedger) RecordTransaction(ctx context.Context, tx *Transaction) error {
	l.logger.InfoContext(ctx, "ledger entry",
		logging.Provider(tx.Provider),
		logging.EventID(tx.EventID),
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"currency", tx.Currency,
	)
	return nil
}

// LogSubscriptionBook is a SubscriptionBook that only logs changes.
type LogSubscriptionBook struct {
	logger *logging.Logger
}

func NewLogSubscriptionBook(logger *logging.Logger) *LogSubscriptionBook {
	return &LogSubscriptionBook{logger: logger}
}

func (b *LogSubscriptionBook) ApplyChange(ctx context.Context, change *SubscriptionChange) error {
	b.logger.InfoContext(ctx, "subscription state change",
		logging.Provider(change.Provider),
		logging.EventID(change.EventID),
		"subscription_id", change.SubscriptionID,
		"customer_id", change.CustomerID,
		logging.Status(change.Status),
	)
	return nil
}
