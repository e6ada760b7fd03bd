package scheduling

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"studiodesk/internal/domain"
	"studiodesk/internal/lock"
	"studiodesk/internal/metrics"
	"studiodesk/internal/repository"
)

const (
	PhaseAdvisory      = "advisory"
	PhaseAuthoritative = "authoritative"
)

// AdvisoryResult is the non-binding answer given to the UI while a booking is
// being edited.
type AdvisoryResult struct {
	Conflict   bool   `json:"conflict"`
	BookingID  string `json:"booking_id,omitempty"`
	ClientName string `json:"client_name,omitempty"`
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
}

type Service struct {
	bookings      BookingReader
	configs       ConfigReader
	locker        lock.Locker
	defaultBuffer int
}

func NewService(bookings BookingReader, configs ConfigReader, locker lock.Locker, defaultBuffer int) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	return &Service{
		bookings:      bookings,
		configs:       configs,
		locker:        locker,
		defaultBuffer: defaultBuffer,
	}
}

// Settings returns the tenant's studio config, or defaults before onboarding.
func (s *Service) Settings(ctx context.Context, tenantID string) (*domain.StudioConfig, error) {
	cfg, err := s.configs.Get(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		cfg = domain.DefaultStudioConfig(tenantID)
		cfg.BufferMinutes = s.defaultBuffer
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// CheckAdvisory runs the checker against known, the bookings the caller
// already holds. With known == nil the day is read from the store. The result
// may be stale and never blocks a write.
func (s *Service) CheckAdvisory(ctx context.Context, tc domain.TenantContext, candidate *domain.Booking, known []domain.Booking) (*AdvisoryResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.Settings(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	if known == nil {
		known, err = s.bookings.ListByRoomAndDate(ctx, tc.TenantID, candidate.Room, candidate.Date)
		if err != nil {
			return nil, err
		}
	}

	hit, err := FindConflict(candidate, known, cfg.BufferMinutes)
	if err != nil {
		return nil, err
	}
	if hit == nil {
		return &AdvisoryResult{}, nil
	}

	metrics.IncConflict(PhaseAdvisory)
	ce := newConflictError(hit, cfg.BufferMinutes)
	return &AdvisoryResult{
		Conflict:   true,
		BookingID:  ce.BookingID,
		ClientName: ce.ClientName,
		Start:      ce.Start,
		End:        ce.End,
	}, nil
}

// Guard returns the binding check. It must run inside the transaction that
// writes the candidate, after the room/day lock is held, so the read it makes
// is the state the write commits against.
func (s *Service) Guard(tc domain.TenantContext, candidate *domain.Booking, buffer int) func(ctx context.Context, tx *gorm.DB) error {
	return func(ctx context.Context, tx *gorm.DB) error {
		existing, err := repository.NewBookingRepository(tx).ListByRoomAndDate(ctx, tc.TenantID, candidate.Room, candidate.Date)
		if err != nil {
			return err
		}
		hit, err := FindConflict(candidate, existing, buffer)
		if err != nil {
			return err
		}
		if hit != nil {
			metrics.IncConflict(PhaseAuthoritative)
			return newConflictError(hit, buffer)
		}
		return nil
	}
}

// LockRoomDay serializes booking writes for one room on one day. Row locks do
// not stop a concurrent insert, this does.
func (s *Service) LockRoomDay(ctx context.Context, tenantID, room, date string) (lock.Lease, error) {
	return s.locker.Obtain(ctx, lock.RoomDayKey(tenantID, room, date))
}

// Availability lists the free slots of a room between opening and closing
// time. Busy intervals include the buffer.
func (s *Service) Availability(ctx context.Context, tc domain.TenantContext, room, date string) ([]Slot, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	cfg, err := s.Settings(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	rows, err := s.bookings.ListByRoomAndDate(ctx, tc.TenantID, room, date)
	if err != nil {
		return nil, err
	}

	busy := make([]Interval, 0, len(rows))
	for i := range rows {
		if rows[i].Status == domain.BookingCancelled {
			continue
		}
		iv, err := BusyInterval(&rows[i], cfg.BufferMinutes)
		if err != nil {
			return nil, err
		}
		busy = append(busy, iv)
	}

	open, close := cfg.Hours()
	return toSlots(freeSlots(open, close, busy)), nil
}
