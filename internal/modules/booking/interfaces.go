package booking

import (
	"context"
	"time"

	"studiodesk/internal/domain"
)

// BookingStore is the read side plus the status write; detail edits go
// through a transaction-bound repository.
type BookingStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Booking, error)
	ListByDate(ctx context.Context, tenantID, date string) ([]domain.Booking, error)
	ListByRoomAndDate(ctx context.Context, tenantID, room, date string) ([]domain.Booking, error)
	ListRange(ctx context.Context, tenantID, from, to string) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, tenantID, id string, from, to domain.BookingStatus, cancelledAt *time.Time) error
}

type ClientDirectory interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Client, error)
}

type StaffDirectory interface {
	CountActive(ctx context.Context, tenantID string, ids []string) (int64, error)
}
