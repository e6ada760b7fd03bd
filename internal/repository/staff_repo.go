package repository

import (
	"context"

	"studiodesk/internal/domain"

	"gorm.io/gorm"
)

type StaffRepository struct {
	db *gorm.DB
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{db: db}
}

func (r *StaffRepository) Create(ctx context.Context, s *domain.Staff) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *StaffRepository) List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Staff, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var rows []domain.Staff
	err := q.Order("name").Find(&rows).Error
	return rows, err
}

// CountActive returns how many of ids are active team members of the tenant.
// Deactivated members cannot take new assignments.
func (r *StaffRepository) CountActive(ctx context.Context, tenantID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int64
	err := r.db.WithContext(ctx).
		Model(&domain.Staff{}).
		Where("tenant_id = ? AND id IN ? AND active = ?", tenantID, ids, true).
		Count(&n).Error
	return n, err
}

func (r *StaffRepository) SetActive(ctx context.Context, tenantID, id string, active bool) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.Staff{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("active", active)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
