// Package events publishes ledger state changes to downstream consumers.
package events

import (
	"context"
	"time"
)

const (
	EventPaymentCompleted = "payment.completed"
	EventPaymentRefunded  = "payment.refunded"
	EventPaymentFailed    = "payment.failed"
	EventUsageDeducted    = "usage.deducted"
)

// Event is the JSON document written to the ledger topic.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	UserID     string         `json:"user_id"`
	PaymentID  string         `json:"payment_id,omitempty"`
	Provider   string         `json:"provider,omitempty"`
	CreditDays int64          `json:"credit_days"`
	Balance    int64          `json:"balance"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Publisher delivers events. Callers treat failures as non-fatal: ledger
// state is already committed when an event is published.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
