package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountType string

const (
	AccountBank  AccountType = "bank"
	AccountCash  AccountType = "cash"
	AccountOther AccountType = "other"
)

func (t AccountType) Valid() bool {
	return t == AccountBank || t == AccountCash || t == AccountOther
}

// Account is a money account of the studio. Balance is written only by the
// ledger inside a database transaction.
type Account struct {
	ID             string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID       string          `json:"tenant_id" gorm:"type:varchar(64);not null;index"`
	Name           string          `json:"name" gorm:"type:varchar(255);not null"`
	Type           AccountType     `json:"type" gorm:"type:varchar(16);not null"`
	OpeningBalance decimal.Decimal `json:"opening_balance" gorm:"type:decimal(20,4);not null;default:0"`
	Balance        decimal.Decimal `json:"balance" gorm:"type:decimal(20,4);not null;default:0"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (Account) TableName() string { return "accounts" }

func (a *Account) BeforeCreate(_ *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
