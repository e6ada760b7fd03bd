package studio

import (
	"context"

	"studiodesk/internal/domain"
)

type ConfigStore interface {
	Get(ctx context.Context, tenantID string) (*domain.StudioConfig, error)
	Upsert(ctx context.Context, cfg *domain.StudioConfig) error
	SetPINHash(ctx context.Context, tenantID, hash string) error
}

type ClientStore interface {
	Create(ctx context.Context, c *domain.Client) error
	CreateBatch(ctx context.Context, clients []domain.Client, batchSize int) error
	ExistingPhones(ctx context.Context, tenantID string, phones []string) (map[string]bool, error)
	GetByID(ctx context.Context, tenantID, id string) (*domain.Client, error)
	List(ctx context.Context, tenantID, search string) ([]domain.Client, error)
	Update(ctx context.Context, c *domain.Client) error
}

type StaffStore interface {
	Create(ctx context.Context, s *domain.Staff) error
	List(ctx context.Context, tenantID string, activeOnly bool) ([]domain.Staff, error)
	SetActive(ctx context.Context, tenantID, id string, active bool) error
}
