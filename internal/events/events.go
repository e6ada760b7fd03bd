// Package events publishes domain events to RabbitMQ after a commit. Delivery
// is best-effort: failures are logged and never undo the committed write.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KeyBookingCreated = "booking.created"
	KeyLedgerPosted   = "ledger.posted"
)

type BookingCreated struct {
	TenantID   string          `json:"tenant_id"`
	BookingID  string          `json:"booking_id"`
	ClientName string          `json:"client_name"`
	Room       string          `json:"room"`
	Date       string          `json:"date"`
	StartTime  string          `json:"start_time"`
	Deposit    decimal.Decimal `json:"deposit"`
	CreatedAt  time.Time       `json:"created_at"`
}

type LedgerPosted struct {
	TenantID      string          `json:"tenant_id"`
	TransactionID string          `json:"transaction_id"`
	Kind          string          `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	AccountID     string          `json:"account_id"`
	BookingID     string          `json:"booking_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Noop drops every event. Used when AMQP_URL is empty and in tests.
type Noop struct{}

func (Noop) Publish(context.Context, string, any) error { return nil }
