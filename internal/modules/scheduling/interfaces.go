package scheduling

import (
	"context"

	"studiodesk/internal/domain"
)

// BookingReader is the read side of the booking repository the checker needs.
type BookingReader interface {
	ListByRoomAndDate(ctx context.Context, tenantID, room, date string) ([]domain.Booking, error)
}

// ConfigReader returns repository.ErrNotFound before onboarding.
type ConfigReader interface {
	Get(ctx context.Context, tenantID string) (*domain.StudioConfig, error)
}
