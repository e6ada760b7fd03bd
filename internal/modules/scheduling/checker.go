package scheduling

import (
	"studiodesk/internal/domain"
)

// Interval is a half-open range of minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// Overlaps uses the half-open test, so intervals that only touch do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && i.End > o.Start
}

// BusyInterval is [start, start + duration + buffer).
func BusyInterval(b *domain.Booking, buffer int) (Interval, error) {
	start, err := b.StartMinutes()
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: start + b.DurationMinutes() + buffer}, nil
}

// FindConflict returns the first booking in existing that collides with the
// candidate, or nil. Bookings in another room or on another day, cancelled
// bookings and the candidate itself are ignored. Both the advisory and the
// authoritative phase go through here so they can never disagree.
func FindConflict(candidate *domain.Booking, existing []domain.Booking, buffer int) (*domain.Booking, error) {
	want, err := BusyInterval(candidate, buffer)
	if err != nil {
		return nil, err
	}

	for i := range existing {
		other := &existing[i]
		if other.Status == domain.BookingCancelled {
			continue
		}
		if candidate.ID != "" && other.ID == candidate.ID {
			continue
		}
		if other.Room != candidate.Room || other.Date != candidate.Date {
			continue
		}

		busy, err := BusyInterval(other, buffer)
		if err != nil {
			return nil, err
		}
		if want.Overlaps(busy) {
			return other, nil
		}
	}
	return nil, nil
}

func newConflictError(b *domain.Booking, buffer int) *ConflictError {
	busy, _ := BusyInterval(b, buffer)
	return &ConflictError{
		BookingID:  b.ID,
		ClientName: b.ClientName,
		Room:       b.Room,
		Date:       b.Date,
		Start:      domain.FormatClock(busy.Start),
		End:        domain.FormatClock(busy.End),
	}
}
