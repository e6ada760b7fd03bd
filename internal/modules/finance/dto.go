package finance

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"studiodesk/internal/domain"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/repository"
)

const maxPageSize = 500

type CreateAccountRequest struct {
	Name           string             `json:"name" binding:"required"`
	Type           domain.AccountType `json:"type"`
	OpeningBalance decimal.Decimal    `json:"opening_balance"`
}

// SettleRequest records a payment (positive amount) or a refund (negative
// amount) for a booking.
type SettleRequest struct {
	BookingID   string          `json:"booking_id" binding:"required"`
	AccountID   string          `json:"account_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	OccurredAt  *time.Time      `json:"occurred_at"`
}

type EntryRequest struct {
	AccountID   string          `json:"account_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	BookingID   string          `json:"booking_id"`
	OccurredAt  *time.Time      `json:"occurred_at"`
}

type TransferRequest struct {
	FromAccountID string          `json:"from_account_id" binding:"required"`
	ToAccountID   string          `json:"to_account_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	OccurredAt    *time.Time      `json:"occurred_at"`
}

type Summary struct {
	From      string          `json:"from,omitempty"`
	To        string          `json:"to,omitempty"`
	Income    decimal.Decimal `json:"income"`
	Expense   decimal.Decimal `json:"expense"`
	Net       decimal.Decimal `json:"net"`
	Transfers decimal.Decimal `json:"transfers"`
}

func newSummary(from, to string, txns []domain.Transaction) Summary {
	income := ledger.Total(txns, domain.TransactionIncome)
	expense := ledger.Total(txns, domain.TransactionExpense)
	return Summary{
		From:      from,
		To:        to,
		Income:    income,
		Expense:   expense,
		Net:       income.Sub(expense),
		Transfers: ledger.Total(txns, domain.TransactionTransfer),
	}
}

func (r SettleRequest) input() ledger.SettleInput {
	return ledger.SettleInput{
		BookingID:   r.BookingID,
		AccountID:   r.AccountID,
		Amount:      r.Amount,
		Description: r.Description,
		OccurredAt:  timeOrZero(r.OccurredAt),
	}
}

func (r EntryRequest) input() ledger.EntryInput {
	return ledger.EntryInput{
		AccountID:   r.AccountID,
		Amount:      r.Amount,
		Description: r.Description,
		Category:    r.Category,
		BookingID:   r.BookingID,
		OccurredAt:  timeOrZero(r.OccurredAt),
	}
}

func (r TransferRequest) input() ledger.TransferInput {
	return ledger.TransferInput{
		FromAccountID: r.FromAccountID,
		ToAccountID:   r.ToAccountID,
		Amount:        r.Amount,
		Description:   r.Description,
		OccurredAt:    timeOrZero(r.OccurredAt),
	}
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

// filterQuery is the raw query string of the transaction listing.
type filterQuery struct {
	AccountID string
	BookingID string
	Kind      string
	From      string
	To        string
	Limit     string
	Offset    string
}

// toFilter parses the listing query. Dates are whole days and To is
// inclusive.
func (q filterQuery) toFilter() (repository.TransactionFilter, error) {
	f := repository.TransactionFilter{
		AccountID: q.AccountID,
		BookingID: q.BookingID,
		Kind:      domain.TransactionKind(q.Kind),
	}
	switch f.Kind {
	case "", domain.TransactionIncome, domain.TransactionExpense, domain.TransactionTransfer:
	default:
		return f, fmt.Errorf("%w: unknown kind %q", ledger.ErrValidation, q.Kind)
	}

	if q.From != "" {
		d, err := domain.ParseDate(q.From)
		if err != nil {
			return f, err
		}
		f.From = &d
	}
	if q.To != "" {
		d, err := domain.ParseDate(q.To)
		if err != nil {
			return f, err
		}
		end := d.AddDate(0, 0, 1)
		f.To = &end
	}
	if f.From != nil && f.To != nil && !f.To.After(*f.From) {
		return f, fmt.Errorf("%w: range ends before it starts", ledger.ErrValidation)
	}

	var err error
	if f.Limit, err = parseCount(q.Limit, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseCount(q.Offset, "offset"); err != nil {
		return f, err
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f, nil
}

func parseCount(s, name string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ledger.ErrValidation, name)
	}
	return n, nil
}
