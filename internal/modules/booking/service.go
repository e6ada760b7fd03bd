package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"studiodesk/internal/domain"
	"studiodesk/internal/events"
	"studiodesk/internal/lock"
	"studiodesk/internal/logging"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/modules/scheduling"
	"studiodesk/internal/pkg/validator"
	"studiodesk/internal/realtime"
	"studiodesk/internal/repository"
)

// maxRangeDays bounds calendar queries.
const maxRangeDays = 92

type Service struct {
	db        *gorm.DB
	bookings  BookingStore
	clients   ClientDirectory
	staff     StaffDirectory
	scheduler *scheduling.Service
	ledger    *ledger.Service
	events    events.Publisher
	changes   realtime.Publisher
}

func NewService(
	db *gorm.DB,
	bookings BookingStore,
	clients ClientDirectory,
	staff StaffDirectory,
	scheduler *scheduling.Service,
	ledgerSvc *ledger.Service,
	pub events.Publisher,
	changes realtime.Publisher,
) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if changes == nil {
		changes = realtime.Discard{}
	}
	return &Service{
		db:        db,
		bookings:  bookings,
		clients:   clients,
		staff:     staff,
		scheduler: scheduler,
		ledger:    ledgerSvc,
		events:    pub,
		changes:   changes,
	}
}

// Create books a slot and takes the optional deposit in one commit. The
// room/day lock is held across the authoritative check and the insert.
func (s *Service) Create(ctx context.Context, tc domain.TenantContext, req CreateBookingRequest) (*ledger.BookingResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	cfg, err := s.scheduler.Settings(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	b := &domain.Booking{
		ClientID:      strings.TrimSpace(req.ClientID),
		ClientName:    strings.TrimSpace(req.ClientName),
		Date:          strings.TrimSpace(req.Date),
		StartTime:     strings.TrimSpace(req.StartTime),
		DurationHours: req.DurationHours,
		Room:          strings.TrimSpace(req.Room),
		Price:         req.Price,
		Items:         req.Items,
		Discount:      req.Discount,
		TaxRate:       req.TaxRate,
		StaffIDs:      req.StaffIDs,
		Notes:         req.Notes,
		Status:        req.Status,
		CreatedBy:     tc.ActorID,
	}
	if b.Status == "" {
		b.Status = domain.BookingBooked
	}
	if !b.Status.Valid() || b.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot create a booking as %q", ErrValidation, b.Status)
	}
	if b.TaxRate == nil && cfg.TaxRate.IsPositive() {
		rate := cfg.TaxRate
		b.TaxRate = &rate
	}
	if err := s.prepare(ctx, tc, cfg, b, b.StaffIDs); err != nil {
		return nil, err
	}

	lease, err := s.scheduler.LockRoomDay(ctx, tc.TenantID, b.Room, b.Date)
	if err != nil {
		return nil, err
	}
	defer s.release(ctx, lease)

	res, err := s.ledger.CreateBookingWithDeposit(ctx, tc, ledger.DepositBooking{
		Booking:   b,
		Deposit:   req.Deposit,
		AccountID: strings.TrimSpace(req.AccountID),
	}, s.scheduler.Guard(tc, b, cfg.BufferMinutes))
	if err != nil {
		return nil, err
	}

	events.PublishAsync(s.events, events.KeyBookingCreated, events.BookingCreated{
		TenantID:   tc.TenantID,
		BookingID:  b.ID,
		ClientName: b.ClientName,
		Room:       b.Room,
		Date:       b.Date,
		StartTime:  b.StartTime,
		Deposit:    req.Deposit,
		CreatedAt:  b.CreatedAt,
	})
	return res, nil
}

// Update edits a booking. The request is applied to the row as it stands
// inside the transaction and only the requested columns are written. A slot
// change re-runs the authoritative check under the room/day lock with the
// booking itself excluded.
func (s *Service) Update(ctx context.Context, tc domain.TenantContext, id string, req UpdateBookingRequest) (*domain.Booking, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	draft, err := s.get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	if draft.Status == domain.BookingCancelled {
		return nil, fmt.Errorf("%w: a cancelled booking cannot be edited", ErrValidation)
	}
	cfg, err := s.scheduler.Settings(ctx, tc.TenantID)
	if err != nil {
		return nil, err
	}

	assigned := draft.StaffIDs
	applyUpdate(draft, req)
	var added []string
	if req.StaffIDs != nil {
		added = newIDs(assigned, draft.StaffIDs)
	}
	if err := s.prepare(ctx, tc, cfg, draft, added); err != nil {
		return nil, err
	}

	moves := req.movesSlot()
	if moves {
		lease, err := s.scheduler.LockRoomDay(ctx, tc.TenantID, draft.Room, draft.Date)
		if err != nil {
			return nil, err
		}
		defer s.release(ctx, lease)
	}

	var before, after *domain.Booking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewBookingRepository(tx)
		current, err := repo.GetForUpdate(ctx, tc.TenantID, id)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if current.Status == domain.BookingCancelled {
			return fmt.Errorf("%w: a cancelled booking cannot be edited", ErrValidation)
		}

		if moves {
			target := *current
			applySlot(&target, req)
			// the lease only covers the room and day read before the transaction
			if target.Room != draft.Room || target.Date != draft.Date {
				return fmt.Errorf("%w: booking %s was moved meanwhile", repository.ErrStale, id)
			}
			if err := validateSlot(&target); err != nil {
				return err
			}
			if err := s.scheduler.Guard(tc, &target, cfg.BufferMinutes)(ctx, tx); err != nil {
				return err
			}
		}

		if err := repo.UpdateDetails(ctx, draft, req.columns()); err != nil {
			return err
		}
		before = current
		after, err = repo.GetByID(ctx, tc.TenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	if before.Date != after.Date {
		s.publish(ctx, realtime.OpRemoved, before)
	}
	s.publish(ctx, realtime.OpModified, after)
	return after, nil
}

// UpdateStatus moves a booking along the pipeline. Completed and cancelled
// are final. The write only lands if the status is still the one checked.
func (s *Service) UpdateStatus(ctx context.Context, tc domain.TenantContext, id string, to domain.BookingStatus) (*domain.Booking, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if !to.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, to)
	}
	b, err := s.get(ctx, tc, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, b.Status, to)
	}

	var cancelledAt *time.Time
	if to == domain.BookingCancelled {
		now := time.Now().UTC()
		cancelledAt = &now
	}
	if err := s.bookings.UpdateStatus(ctx, tc.TenantID, id, b.Status, to, cancelledAt); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		case errors.Is(err, repository.ErrStale):
			return nil, fmt.Errorf("%w: booking %s is no longer %s", err, id, b.Status)
		}
		return nil, err
	}

	b.Status = to
	b.CancelledAt = cancelledAt
	s.publish(ctx, realtime.OpModified, b)
	return b, nil
}

func (s *Service) Cancel(ctx context.Context, tc domain.TenantContext, id string) (*domain.Booking, error) {
	return s.UpdateStatus(ctx, tc, id, domain.BookingCancelled)
}

func (s *Service) Get(ctx context.Context, tc domain.TenantContext, id string) (*domain.Booking, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return s.get(ctx, tc, id)
}

func (s *Service) ListByDate(ctx context.Context, tc domain.TenantContext, date string) ([]domain.Booking, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if _, err := domain.ParseDate(date); err != nil {
		return nil, err
	}
	return s.bookings.ListByDate(ctx, tc.TenantID, date)
}

func (s *Service) ListRange(ctx context.Context, tc domain.TenantContext, from, to string) ([]domain.Booking, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	start, err := domain.ParseDate(from)
	if err != nil {
		return nil, err
	}
	end, err := domain.ParseDate(to)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: range ends before it starts", ErrValidation)
	}
	if end.Sub(start) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range is longer than %d days", ErrValidation, maxRangeDays)
	}
	return s.bookings.ListRange(ctx, tc.TenantID, from, to)
}

// Check is the advisory phase. Its answer can be stale and never blocks.
func (s *Service) Check(ctx context.Context, tc domain.TenantContext, req CheckRequest) (*scheduling.AdvisoryResult, error) {
	candidate := &domain.Booking{
		ID:            req.ID,
		Date:          strings.TrimSpace(req.Date),
		StartTime:     strings.TrimSpace(req.StartTime),
		DurationHours: req.DurationHours,
		Room:          strings.TrimSpace(req.Room),
	}
	if err := validateSlot(candidate); err != nil {
		return nil, err
	}
	return s.scheduler.CheckAdvisory(ctx, tc, candidate, req.Known)
}

func (s *Service) Availability(ctx context.Context, tc domain.TenantContext, room, date string) ([]scheduling.Slot, error) {
	return s.scheduler.Availability(ctx, tc, room, date)
}

func (s *Service) get(ctx context.Context, tc domain.TenantContext, id string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, tc.TenantID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, err
}

// prepare validates the booking and fills the derived fields. Nothing here
// touches the ledger. Only the staff in newStaff are checked: members already
// assigned may have been deactivated since.
func (s *Service) prepare(ctx context.Context, tc domain.TenantContext, cfg *domain.StudioConfig, b *domain.Booking, newStaff []string) error {
	if err := validateSlot(b); err != nil {
		return err
	}
	if !cfg.HasRoom(b.Room) {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, b.Room)
	}

	if b.ClientID != "" && s.clients != nil {
		client, err := s.clients.GetByID(ctx, tc.TenantID, b.ClientID)
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: unknown client %s", ErrValidation, b.ClientID)
		}
		if err != nil {
			return err
		}
		if b.ClientName == "" {
			b.ClientName = client.Name
		}
	}
	if b.ClientName == "" {
		return fmt.Errorf("%w: client name is required", ErrValidation)
	}

	for i := range b.Items {
		if errs := validator.Validate(b.Items[i]); errs != nil {
			return fmt.Errorf("%w: item %d: %v", ErrValidation, i, errs)
		}
		if !b.Items[i].Quantity.IsPositive() || b.Items[i].UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d needs a positive quantity and a non-negative price", ErrValidation, i)
		}
	}
	if err := b.NormalizeItems(); err != nil {
		return err
	}
	if len(b.Items) > 0 && b.Price.IsZero() {
		b.Price = b.Subtotal()
	}
	if b.Price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative", ErrValidation)
	}

	if b.Discount != nil {
		if errs := validator.Validate(b.Discount); errs != nil {
			return fmt.Errorf("%w: discount: %v", ErrValidation, errs)
		}
		if b.Discount.Value.IsNegative() {
			return fmt.Errorf("%w: discount cannot be negative", ErrValidation)
		}
		if b.Discount.Type == domain.DiscountPercent && b.Discount.Value.GreaterThan(decimal.NewFromInt(100)) {
			return fmt.Errorf("%w: discount cannot exceed 100%%", ErrValidation)
		}
	}
	if b.TaxRate != nil && b.TaxRate.IsNegative() {
		return fmt.Errorf("%w: tax rate cannot be negative", ErrValidation)
	}

	if len(newStaff) > 0 && s.staff != nil {
		ids := uniq(newStaff)
		n, err := s.staff.CountActive(ctx, tc.TenantID, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return fmt.Errorf("%w: unknown or inactive staff member assigned", ErrValidation)
		}
	}
	return nil
}

func validateSlot(b *domain.Booking) error {
	if _, err := domain.ParseDate(b.Date); err != nil {
		return err
	}
	start, err := domain.ParseClock(b.StartTime)
	if err != nil {
		return err
	}
	if b.DurationHours <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if start+b.DurationMinutes() > 24*60 {
		return fmt.Errorf("%w: booking must end by midnight", ErrValidation)
	}
	if b.Room == "" {
		return fmt.Errorf("%w: room is required", ErrValidation)
	}
	return nil
}

// applySlot copies only the slot fields of the request onto b.
func applySlot(b *domain.Booking, req UpdateBookingRequest) {
	if req.Date != nil {
		b.Date = strings.TrimSpace(*req.Date)
	}
	if req.StartTime != nil {
		b.StartTime = strings.TrimSpace(*req.StartTime)
	}
	if req.DurationHours != nil {
		b.DurationHours = *req.DurationHours
	}
	if req.Room != nil {
		b.Room = strings.TrimSpace(*req.Room)
	}
}

func applyUpdate(b *domain.Booking, req UpdateBookingRequest) {
	if req.ClientID != nil {
		b.ClientID = strings.TrimSpace(*req.ClientID)
	}
	if req.ClientName != nil {
		b.ClientName = strings.TrimSpace(*req.ClientName)
	}
	applySlot(b, req)
	if req.Price != nil {
		b.Price = *req.Price
	}
	if req.Items != nil {
		b.Items = *req.Items
	}
	if req.Discount != nil {
		b.Discount = req.Discount
	}
	if req.TaxRate != nil {
		b.TaxRate = req.TaxRate
	}
	if req.StaffIDs != nil {
		b.StaffIDs = *req.StaffIDs
	}
	if req.Notes != nil {
		b.Notes = *req.Notes
	}
}

// newIDs returns the ids in next that are not in prev.
func newIDs(prev, next []string) []string {
	had := make(map[string]bool, len(prev))
	for _, id := range prev {
		had[id] = true
	}
	var out []string
	for _, id := range next {
		if !had[id] {
			out = append(out, id)
		}
	}
	return out
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *Service) publish(ctx context.Context, op realtime.Op, b *domain.Booking) {
	s.changes.Publish(context.WithoutCancel(ctx), realtime.Change{
		Collection: realtime.CollectionBookings,
		TenantID:   b.TenantID,
		Op:         op,
		ID:         b.ID,
		Date:       b.Date,
		Doc:        b,
	})
}

func (s *Service) release(ctx context.Context, lease lock.Lease) {
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
		logging.LogError(logging.GetLogger(), "booking", "release", "room/day lock release failed", nil, err)
	}
}
