package repository

import (
	"context"
	"strings"

	"studiodesk/internal/domain"

	"gorm.io/gorm"
)

type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) Create(ctx context.Context, c *domain.Client) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *ClientRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Client, error) {
	var c domain.Client
	err := r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&c).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

// List filters by a case-insensitive name or phone fragment when search is set.
func (r *ClientRepository) List(ctx context.Context, tenantID, search string) ([]domain.Client, error) {
	q := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(name) LIKE ? OR phone LIKE ?", like, like)
	}
	var rows []domain.Client
	err := q.Order("name").Find(&rows).Error
	return rows, err
}

func (r *ClientRepository) Update(ctx context.Context, c *domain.Client) error {
	tx := r.db.WithContext(ctx).
		Model(c).
		Where("tenant_id = ?", c.TenantID).
		Select("name", "phone", "email", "notes", "updated_at").
		Updates(c)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateBatch inserts clients in chunks of batchSize.
func (r *ClientRepository) CreateBatch(ctx context.Context, clients []domain.Client, batchSize int) error {
	if len(clients) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(clients, batchSize).Error
}

// ExistingPhones reports which of phones are already on file for the tenant.
func (r *ClientRepository) ExistingPhones(ctx context.Context, tenantID string, phones []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(phones) == 0 {
		return out, nil
	}
	var found []string
	err := r.db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("tenant_id = ? AND phone IN ?", tenantID, phones).
		Pluck("phone", &found).Error
	if err != nil {
		return nil, err
	}
	for _, p := range found {
		out[p] = true
	}
	return out, nil
}
