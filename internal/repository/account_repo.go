package repository

import (
	"context"
	"time"

	"studiodesk/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&a).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

func (r *AccountRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Account, error) {
	var a domain.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&a).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

func (r *AccountRepository) List(ctx context.Context, tenantID string) ([]domain.Account, error) {
	var rows []domain.Account
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at").
		Find(&rows).Error
	return rows, err
}

// ListAll walks every tenant; used by the reconciliation job only.
func (r *AccountRepository) ListAll(ctx context.Context) ([]domain.Account, error) {
	var rows []domain.Account
	err := r.db.WithContext(ctx).Order("tenant_id, created_at").Find(&rows).Error
	return rows, err
}

func (r *AccountRepository) SetBalance(ctx context.Context, tenantID, id string, balance decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&domain.Account{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"balance":    balance,
			"updated_at": time.Now().UTC(),
		}).Error
}
