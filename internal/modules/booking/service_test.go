package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"studiodesk/internal/domain"
	"studiodesk/internal/events"
	"studiodesk/internal/lock"
	"studiodesk/internal/modules/ledger"
	"studiodesk/internal/modules/scheduling"
	"studiodesk/internal/realtime"
	"studiodesk/internal/repository"
)

var tc = domain.TenantContext{TenantID: "t1", ActorID: "u1", Role: "owner"}

type capturedEvents struct {
	ch chan string
}

func (c *capturedEvents) Publish(_ context.Context, key string, _ any) error {
	c.ch <- key
	return nil
}

type recordingChanges struct {
	mu      sync.Mutex
	changes []realtime.Change
}

func (r *recordingChanges) Publish(_ context.Context, ch realtime.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, ch)
}

func (r *recordingChanges) last() realtime.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.changes[len(r.changes)-1]
}

type fixture struct {
	svc     *Service
	ledger  *ledger.Service
	db      *gorm.DB
	events  *capturedEvents
	changes *recordingChanges
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:booking_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	bookings := repository.NewBookingRepository(db)
	configs := repository.NewStudioConfigRepository(db)

	changes := &recordingChanges{}
	captured := &capturedEvents{ch: make(chan string, 16)}
	ledgerSvc := ledger.NewService(db, ledger.ExpensePolicy{}, events.Noop{}, changes)
	scheduler := scheduling.NewService(bookings, configs, lock.NewLocalLocker(), 0)
	svc := NewService(db, bookings, repository.NewClientRepository(db), repository.NewStaffRepository(db), scheduler, ledgerSvc, captured, changes)
	return &fixture{svc: svc, ledger: ledgerSvc, db: db, events: captured, changes: changes}
}

func (f *fixture) configure(t *testing.T, cfg *domain.StudioConfig) {
	t.Helper()
	cfg.TenantID = tc.TenantID
	require.NoError(t, repository.NewStudioConfigRepository(f.db).Upsert(context.Background(), cfg))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func request(start string, hours float64) CreateBookingRequest {
	return CreateBookingRequest{
		ClientName:    "Aigerim",
		Date:          "2025-03-14",
		StartTime:     start,
		DurationHours: hours,
		Room:          "Main Studio",
		Price:         dec("800000"),
	}
}

func countBookings(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&domain.Booking{}).Count(&n).Error)
	return n
}

func TestCreate_WithDeposit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acct, err := f.ledger.CreateAccount(ctx, tc, ledger.NewAccount{Name: "Kaspi", Type: domain.AccountBank})
	require.NoError(t, err)

	req := request("10:00", 2)
	req.Deposit = dec("300000")
	req.AccountID = acct.ID

	res, err := f.svc.Create(ctx, tc, req)
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	assert.True(t, dec("300000").Equal(res.Booking.PaidAmount))
	assert.True(t, dec("300000").Equal(res.Account.Balance))

	select {
	case key := <-f.events.ch:
		assert.Equal(t, events.KeyBookingCreated, key)
	case <-time.After(time.Second):
		t.Fatal("booking.created was not published")
	}
}

func TestCreate_ConflictWritesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, tc, request("11:00", 1))
	require.ErrorIs(t, err, scheduling.ErrConflict)

	var ce *scheduling.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Aigerim", ce.ClientName)
	assert.Equal(t, int64(1), countBookings(t, f.db))
}

func TestCreate_AdjacentAndOtherRoom(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, tc, request("12:00", 1))
	require.NoError(t, err)

	other := request("10:00", 2)
	other.Room = "Loft"
	_, err = f.svc.Create(ctx, tc, other)
	require.NoError(t, err)

	otherTenant := domain.TenantContext{TenantID: "t2", ActorID: "u2"}
	_, err = f.svc.Create(ctx, otherTenant, request("10:00", 2))
	require.NoError(t, err)
}

func TestCreate_BufferFromStudioConfig(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.configure(t, &domain.StudioConfig{StudioName: "Light", BufferMinutes: 30})

	_, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, tc, request("12:00", 1))
	assert.ErrorIs(t, err, scheduling.ErrConflict)

	_, err = f.svc.Create(ctx, tc, request("12:30", 1))
	assert.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.configure(t, &domain.StudioConfig{StudioName: "Light", Rooms: []string{"Main Studio"}})

	tests := []struct {
		name   string
		mutate func(r *CreateBookingRequest)
		want   error
	}{
		{"bad date", func(r *CreateBookingRequest) { r.Date = "14.03.2025" }, domain.ErrInvalidDate},
		{"bad clock", func(r *CreateBookingRequest) { r.StartTime = "25:00" }, domain.ErrInvalidClock},
		{"zero duration", func(r *CreateBookingRequest) { r.DurationHours = 0 }, ErrValidation},
		{"past midnight", func(r *CreateBookingRequest) { r.StartTime = "23:00"; r.DurationHours = 2 }, ErrValidation},
		{"unknown room", func(r *CreateBookingRequest) { r.Room = "Basement" }, ErrUnknownRoom},
		{"no client", func(r *CreateBookingRequest) { r.ClientName = "" }, ErrValidation},
		{"unknown client", func(r *CreateBookingRequest) { r.ClientID = "missing" }, ErrValidation},
		{"unknown staff", func(r *CreateBookingRequest) { r.StaffIDs = []string{"ghost"} }, ErrValidation},
		{"terminal status", func(r *CreateBookingRequest) { r.Status = domain.BookingCompleted }, ErrValidation},
		{"deposit without account", func(r *CreateBookingRequest) { r.Deposit = dec("10") }, ErrValidation},
		{"percent discount over 100", func(r *CreateBookingRequest) {
			r.Discount = &domain.Discount{Type: domain.DiscountPercent, Value: dec("120")}
		}, ErrValidation},
		{"item total mismatch", func(r *CreateBookingRequest) {
			r.Items = []domain.LineItem{{Description: "Prints", Quantity: dec("2"), UnitPrice: dec("10"), Total: dec("25")}}
		}, domain.ErrItemTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := request("10:00", 2)
			tt.mutate(&req)
			_, err := f.svc.Create(ctx, tc, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, int64(0), countBookings(t, f.db))
}

func TestCreate_DerivesPriceClientAndTax(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.configure(t, &domain.StudioConfig{StudioName: "Light", TaxRate: dec("12")})

	client := &domain.Client{TenantID: tc.TenantID, Name: "Dana"}
	require.NoError(t, repository.NewClientRepository(f.db).Create(ctx, client))
	staff := &domain.Staff{TenantID: tc.TenantID, Name: "Arman", Role: domain.StaffPhotographer, Active: true}
	require.NoError(t, repository.NewStaffRepository(f.db).Create(ctx, staff))

	req := request("10:00", 2)
	req.ClientName = ""
	req.ClientID = client.ID
	req.Price = decimal.Zero
	req.StaffIDs = []string{staff.ID}
	req.Items = []domain.LineItem{
		{Description: "Session", Quantity: dec("2"), UnitPrice: dec("50000")},
		{Description: "Prints", Quantity: dec("10"), UnitPrice: dec("1000")},
	}

	res, err := f.svc.Create(ctx, tc, req)
	require.NoError(t, err)

	b := res.Booking
	assert.Equal(t, "Dana", b.ClientName)
	assert.True(t, dec("110000").Equal(b.Price))
	assert.True(t, dec("10000").Equal(b.Items[1].Total))
	require.NotNil(t, b.TaxRate)
	assert.True(t, dec("12").Equal(*b.TaxRate))
	assert.True(t, dec("123200").Equal(b.Total()))
}

func TestUpdate_MoveChecksConflictsExcludingSelf(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, tc, request("14:00", 2))
	require.NoError(t, err)

	// overlapping its own old slot is fine
	start := "11:00"
	moved, err := f.svc.Update(ctx, tc, first.Booking.ID, UpdateBookingRequest{StartTime: &start})
	require.NoError(t, err)
	assert.Equal(t, "11:00", moved.StartTime)

	start = "12:30"
	_, err = f.svc.Update(ctx, tc, second.Booking.ID, UpdateBookingRequest{StartTime: &start})
	require.ErrorIs(t, err, scheduling.ErrConflict)

	stored, err := repository.NewBookingRepository(f.db).GetByID(ctx, tc.TenantID, second.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, "14:00", stored.StartTime)

	assert.Equal(t, realtime.OpModified, f.changes.last().Op)
}

func TestUpdate_KeepsPaidAmount(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	acct, err := f.ledger.CreateAccount(ctx, tc, ledger.NewAccount{Name: "Cash", Type: domain.AccountCash})
	require.NoError(t, err)

	req := request("10:00", 2)
	req.Deposit = dec("100000")
	req.AccountID = acct.ID
	res, err := f.svc.Create(ctx, tc, req)
	require.NoError(t, err)

	notes := "bring the green backdrop"
	price := dec("900000")
	_, err = f.svc.Update(ctx, tc, res.Booking.ID, UpdateBookingRequest{Notes: &notes, Price: &price})
	require.NoError(t, err)

	stored, err := repository.NewBookingRepository(f.db).GetByID(ctx, tc.TenantID, res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, notes, stored.Notes)
	assert.True(t, dec("900000").Equal(stored.Price))
	assert.True(t, dec("100000").Equal(stored.PaidAmount))
}

func TestUpdateStatus(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)
	id := res.Booking.ID

	b, err := f.svc.UpdateStatus(ctx, tc, id, domain.BookingEditing)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingEditing, b.Status)

	_, err = f.svc.UpdateStatus(ctx, tc, id, "archived")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	b, err = f.svc.Cancel(ctx, tc, id)
	require.NoError(t, err)
	assert.NotNil(t, b.CancelledAt)

	_, err = f.svc.UpdateStatus(ctx, tc, id, domain.BookingBooked)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	notes := "late edit"
	_, err = f.svc.Update(ctx, tc, id, UpdateBookingRequest{Notes: &notes})
	assert.ErrorIs(t, err, ErrValidation)

	// the cancelled booking no longer holds the room
	_, err = f.svc.Create(ctx, tc, request("10:00", 2))
	assert.NoError(t, err)

	_, err = f.svc.Cancel(ctx, tc, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRange(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, date := range []string{"2025-03-14", "2025-03-20", "2025-04-02"} {
		req := request("10:00", 1)
		req.Date = date
		_, err := f.svc.Create(ctx, tc, req)
		require.NoError(t, err)
	}

	rows, err := f.svc.ListRange(ctx, tc, "2025-03-01", "2025-03-31")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = f.svc.ListByDate(ctx, tc, "2025-04-02")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = f.svc.ListRange(ctx, tc, "2025-03-31", "2025-03-01")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.ListRange(ctx, tc, "2025-01-01", "2025-12-31")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCheck_UsesKnownBookings(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	known := []domain.Booking{{
		ID:            "b-1",
		ClientName:    "Aigerim",
		Date:          "2025-03-14",
		StartTime:     "10:00",
		DurationHours: 2,
		Room:          "Main Studio",
		Status:        domain.BookingBooked,
	}}

	res, err := f.svc.Check(ctx, tc, CheckRequest{Date: "2025-03-14", StartTime: "11:00", DurationHours: 1, Room: "Main Studio", Known: known})
	require.NoError(t, err)
	assert.True(t, res.Conflict)
	assert.Equal(t, "b-1", res.BookingID)

	res, err = f.svc.Check(ctx, tc, CheckRequest{ID: "b-1", Date: "2025-03-14", StartTime: "11:00", DurationHours: 1, Room: "Main Studio", Known: known})
	require.NoError(t, err)
	assert.False(t, res.Conflict)
}

func TestCreate_ConcurrentOverlapOnlyOneWins(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := request(fmt.Sprintf("10:%02d", i*5), 2)
			_, err := f.svc.Create(ctx, tc, req)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, scheduling.ErrConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, conflicts)
	assert.Equal(t, int64(1), countBookings(t, f.db))
}

// frozenReads answers GetByID with a copy taken earlier, the view of a
// request that loaded the booking before someone else changed it.
type frozenReads struct {
	*repository.BookingRepository
	snapshot domain.Booking
}

func (f *frozenReads) GetByID(context.Context, string, string) (*domain.Booking, error) {
	b := f.snapshot
	return &b, nil
}

// readingFrom builds a second service over the same database whose
// reads come from snapshot.
func (f *fixture) readingFrom(snapshot domain.Booking) *Service {
	store := &frozenReads{BookingRepository: repository.NewBookingRepository(f.db), snapshot: snapshot}
	return NewService(f.db, store, f.svc.clients, f.svc.staff, f.svc.scheduler, f.ledger, events.Noop{}, f.changes)
}

func TestUpdate_EarlierReadDoesNotRestoreOldSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repo := repository.NewBookingRepository(f.db)

	res, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)
	id := res.Booking.ID
	earlier := f.readingFrom(*res.Booking)

	start := "14:00"
	_, err = f.svc.Update(ctx, tc, id, UpdateBookingRequest{StartTime: &start})
	require.NoError(t, err)

	dana := request("10:00", 2)
	dana.ClientName = "Dana"
	_, err = f.svc.Create(ctx, tc, dana)
	require.NoError(t, err)

	notes := "bring reflectors"
	updated, err := earlier.Update(ctx, tc, id, UpdateBookingRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "14:00", updated.StartTime)
	assert.Equal(t, notes, updated.Notes)

	day, err := repo.ListByRoomAndDate(ctx, tc.TenantID, "Main Studio", "2025-03-14")
	require.NoError(t, err)
	require.Len(t, day, 2)
	for i := range day {
		hit, err := scheduling.FindConflict(&day[i], day, 0)
		require.NoError(t, err)
		assert.Nil(t, hit, day[i].ClientName)
	}
}

func TestUpdate_MoveChecksTheCurrentRow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repo := repository.NewBookingRepository(f.db)

	res, err := f.svc.Create(ctx, tc, request("10:00", 1))
	require.NoError(t, err)
	id := res.Booking.ID
	earlier := f.readingFrom(*res.Booking)

	hours := 3.0
	_, err = f.svc.Update(ctx, tc, id, UpdateBookingRequest{DurationHours: &hours})
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, tc, request("14:00", 2))
	require.NoError(t, err)

	// 12:00 for one hour is free, for the stored three hours it is not
	start := "12:00"
	_, err = earlier.Update(ctx, tc, id, UpdateBookingRequest{StartTime: &start})
	require.ErrorIs(t, err, scheduling.ErrConflict)

	stored, err := repo.GetByID(ctx, tc.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, "10:00", stored.StartTime)
	assert.Equal(t, 3.0, stored.DurationHours)
}

func TestUpdate_MoveAfterRoomChangedIsStale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)
	id := res.Booking.ID
	earlier := f.readingFrom(*res.Booking)

	room := "Loft"
	_, err = f.svc.Update(ctx, tc, id, UpdateBookingRequest{Room: &room})
	require.NoError(t, err)

	start := "15:00"
	_, err = earlier.Update(ctx, tc, id, UpdateBookingRequest{StartTime: &start})
	require.ErrorIs(t, err, repository.ErrStale)

	stored, err := repository.NewBookingRepository(f.db).GetByID(ctx, tc.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, "Loft", stored.Room)
	assert.Equal(t, "10:00", stored.StartTime)
}

func TestUpdate_DateMoveRemovesFromOldDay(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)

	date := "2025-03-15"
	_, err = f.svc.Update(ctx, tc, res.Booking.ID, UpdateBookingRequest{Date: &date})
	require.NoError(t, err)

	f.changes.mu.Lock()
	defer f.changes.mu.Unlock()
	n := len(f.changes.changes)
	require.GreaterOrEqual(t, n, 2)
	removed, modified := f.changes.changes[n-2], f.changes.changes[n-1]
	assert.Equal(t, realtime.OpRemoved, removed.Op)
	assert.Equal(t, "2025-03-14", removed.Date)
	assert.Equal(t, res.Booking.ID, removed.ID)
	assert.Equal(t, realtime.OpModified, modified.Op)
	assert.Equal(t, "2025-03-15", modified.Date)
}

func TestStaffAssignment_OnlyActiveMembers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	staff := repository.NewStaffRepository(f.db)

	photographer := &domain.Staff{TenantID: tc.TenantID, Name: "Timur", Role: domain.StaffPhotographer, Active: true}
	require.NoError(t, staff.Create(ctx, photographer))

	req := request("10:00", 2)
	req.StaffIDs = []string{photographer.ID}
	res, err := f.svc.Create(ctx, tc, req)
	require.NoError(t, err)

	require.NoError(t, staff.SetActive(ctx, tc.TenantID, photographer.ID, false))

	req = request("14:00", 2)
	req.StaffIDs = []string{photographer.ID}
	_, err = f.svc.Create(ctx, tc, req)
	assert.ErrorIs(t, err, ErrValidation)

	// an existing assignment does not block unrelated edits
	notes := "edit by Friday"
	updated, err := f.svc.Update(ctx, tc, res.Booking.ID, UpdateBookingRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, updated.Notes)

	other := &domain.Staff{TenantID: tc.TenantID, Name: "Aruzhan", Role: domain.StaffEditor, Active: true}
	require.NoError(t, staff.Create(ctx, other))
	ids := []string{photographer.ID, other.ID}
	_, err = f.svc.Update(ctx, tc, res.Booking.ID, UpdateBookingRequest{StaffIDs: &ids})
	assert.NoError(t, err)
}

func TestUpdateStatus_EarlierReadIsStale(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, tc, request("10:00", 2))
	require.NoError(t, err)
	id := res.Booking.ID
	earlier := f.readingFrom(*res.Booking)

	_, err = f.svc.UpdateStatus(ctx, tc, id, domain.BookingCompleted)
	require.NoError(t, err)

	_, err = earlier.Cancel(ctx, tc, id)
	require.ErrorIs(t, err, repository.ErrStale)

	stored, err := repository.NewBookingRepository(f.db).GetByID(ctx, tc.TenantID, id)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, stored.Status)
	assert.Nil(t, stored.CancelledAt)
}
