package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionKind string

const (
	TransactionIncome   TransactionKind = "income"
	TransactionExpense  TransactionKind = "expense"
	TransactionTransfer TransactionKind = "transfer"
)

const (
	CategoryBookingSale   = "Sales/Booking"
	CategoryBookingRefund = "Refund/Booking"
	CategoryTransfer      = "Transfer"
)

// Transaction is one entry of the ledger. Amount is always positive, the
// direction comes from Kind.
type Transaction struct {
	ID                   string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID             string          `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	OccurredAt           time.Time       `json:"occurred_at" gorm:"not null;index"`
	Description          string          `json:"description" gorm:"type:text"`
	Amount               decimal.Decimal `json:"amount" gorm:"type:decimal(20,4);not null"`
	Kind                 TransactionKind `json:"kind" gorm:"type:varchar(16);not null;index"`
	AccountID            string          `json:"account_id" gorm:"type:varchar(36);not null;index"`
	DestinationAccountID *string         `json:"destination_account_id,omitempty" gorm:"type:varchar(36);index"`
	Category             string          `json:"category" gorm:"type:varchar(64)"`
	BookingID            *string         `json:"booking_id,omitempty" gorm:"type:varchar(36);index"`
	CreatedBy            string          `json:"created_by,omitempty" gorm:"type:varchar(64)"`
	CreatedAt            time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(_ *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.OccurredAt.IsZero() {
		t.OccurredAt = time.Now()
	}
	// day filters compare against the UTC calendar day
	t.OccurredAt = t.OccurredAt.UTC()
	return nil
}

// SignedFor returns the effect of the transaction on the given account.
func (t *Transaction) SignedFor(accountID string) decimal.Decimal {
	switch t.Kind {
	case TransactionIncome:
		if t.AccountID == accountID {
			return t.Amount
		}
	case TransactionExpense:
		if t.AccountID == accountID {
			return t.Amount.Neg()
		}
	case TransactionTransfer:
		if t.AccountID == accountID {
			return t.Amount.Neg()
		}
		if t.DestinationAccountID != nil && *t.DestinationAccountID == accountID {
			return t.Amount
		}
	}
	return decimal.Zero
}
