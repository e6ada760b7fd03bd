package repository

import (
	"context"
	"time"

	"studiodesk/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StudioConfigRepository struct {
	db *gorm.DB
}

func NewStudioConfigRepository(db *gorm.DB) *StudioConfigRepository {
	return &StudioConfigRepository{db: db}
}

// Get returns the stored configuration or ErrNotFound when onboarding has not
// happened yet.
func (r *StudioConfigRepository) Get(ctx context.Context, tenantID string) (*domain.StudioConfig, error) {
	var cfg domain.StudioConfig
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&cfg).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &cfg, nil
}

// Upsert writes every setting except the PIN hash, which has its own setter.
func (r *StudioConfigRepository) Upsert(ctx context.Context, cfg *domain.StudioConfig) error {
	cfg.UpdatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"studio_name",
			"rooms",
			"tax_rate",
			"buffer_minutes",
			"open_time",
			"close_time",
			"currency",
			"updated_at",
		}),
	}).Create(cfg).Error
}

func (r *StudioConfigRepository) SetPINHash(ctx context.Context, tenantID, hash string) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.StudioConfig{}).
		Where("tenant_id = ?", tenantID).
		Updates(map[string]any{
			"finance_pin_hash": hash,
			"updated_at":       time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
