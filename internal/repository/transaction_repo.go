package repository

import (
	"context"
	"time"

	"studiodesk/internal/domain"

	"gorm.io/gorm"
)

type TransactionFilter struct {
	AccountID string
	BookingID string
	Kind      domain.TransactionKind
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, t *domain.Transaction) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *TransactionRepository) List(ctx context.Context, tenantID string, f TransactionFilter) ([]domain.Transaction, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if f.AccountID != "" {
		q = q.Where("account_id = ? OR destination_account_id = ?", f.AccountID, f.AccountID)
	}
	if f.BookingID != "" {
		q = q.Where("booking_id = ?", f.BookingID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.From != nil {
		q = q.Where("occurred_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("occurred_at < ?", *f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var rows []domain.Transaction
	err := q.Order("occurred_at DESC, created_at DESC").Find(&rows).Error
	return rows, err
}

// ListForAccount returns every entry touching the account, oldest first.
func (r *TransactionRepository) ListForAccount(ctx context.Context, tenantID, accountID string) ([]domain.Transaction, error) {
	var rows []domain.Transaction
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("account_id = ? OR destination_account_id = ?", accountID, accountID).
		Order("occurred_at, created_at").
		Find(&rows).Error
	return rows, err
}
