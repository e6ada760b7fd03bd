package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"studiodesk/internal/domain"
)

// Guard runs inside the booking transaction before anything is written. A
// non-nil error aborts the commit.
type Guard func(ctx context.Context, tx *gorm.DB) error

// ExpensePolicy decides whether an expense may take an account below zero.
// Studios commonly pay out of pocket and settle later, so the floor is off
// unless configured.
type ExpensePolicy struct {
	EnforceFloor bool
}

type DepositBooking struct {
	Booking   *domain.Booking
	Deposit   decimal.Decimal
	AccountID string
}

type BookingResult struct {
	Booking     *domain.Booking     `json:"booking"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Account     *domain.Account     `json:"account,omitempty"`
}

// SettleInput posts a payment (positive Amount) or a refund (negative Amount)
// against a booking.
type SettleInput struct {
	BookingID   string
	AccountID   string
	Amount      decimal.Decimal
	Description string
	OccurredAt  time.Time
}

type SettleResult struct {
	Booking     *domain.Booking     `json:"booking"`
	Account     *domain.Account     `json:"account"`
	Transaction *domain.Transaction `json:"transaction"`
}

// EntryInput is a free-standing income or expense.
type EntryInput struct {
	AccountID   string
	Amount      decimal.Decimal
	Description string
	Category    string
	BookingID   string
	OccurredAt  time.Time
}

type EntryResult struct {
	Account     *domain.Account     `json:"account"`
	Transaction *domain.Transaction `json:"transaction"`
}

type TransferInput struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Description   string
	OccurredAt    time.Time
}

type TransferResult struct {
	From        *domain.Account     `json:"from"`
	To          *domain.Account     `json:"to"`
	Transaction *domain.Transaction `json:"transaction"`
}

type NewAccount struct {
	Name           string
	Type           domain.AccountType
	OpeningBalance decimal.Decimal
}

// AccountReport compares an account's stored balance with what its ledger
// entries add up to.
type AccountReport struct {
	AccountID      string          `json:"account_id"`
	TenantID       string          `json:"tenant_id"`
	Name           string          `json:"name"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
	LedgerSum      decimal.Decimal `json:"ledger_sum"`
	Drift          decimal.Decimal `json:"drift"`
	Entries        int             `json:"entries"`
}

func (r AccountReport) Balanced() bool { return r.Drift.IsZero() }
