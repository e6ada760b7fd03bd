package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"studiodesk/internal/domain"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repository_%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(domain.Models()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func seedBooking(t *testing.T, repo *BookingRepository) *domain.Booking {
	t.Helper()
	b := &domain.Booking{
		TenantID:      "t1",
		ClientName:    "Aigerim",
		Date:          "2025-03-14",
		StartTime:     "10:00",
		DurationHours: 2,
		Room:          "Main Studio",
		Price:         decimal.NewFromInt(50000),
		Status:        domain.BookingBooked,
	}
	require.NoError(t, repo.Create(context.Background(), b))
	return b
}

func TestBookingRepository_UpdateDetailsWritesOnlyColumns(t *testing.T) {
	repo := NewBookingRepository(setupTestDB(t))
	ctx := context.Background()
	b := seedBooking(t, repo)

	stale := *b
	moved := *b
	moved.StartTime = "14:00"
	require.NoError(t, repo.UpdateDetails(ctx, &moved, []string{"start_time"}))

	stale.Notes = "bring reflectors"
	require.NoError(t, repo.UpdateDetails(ctx, &stale, []string{"notes"}))

	got, err := repo.GetByID(ctx, "t1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, "14:00", got.StartTime)
	assert.Equal(t, "bring reflectors", got.Notes)

	stale.PaidAmount = decimal.NewFromInt(50000)
	assert.Error(t, repo.UpdateDetails(ctx, &stale, []string{"paid_amount"}))

	missing := *b
	missing.ID = "missing"
	assert.ErrorIs(t, repo.UpdateDetails(ctx, &missing, []string{"notes"}), ErrNotFound)
}

func TestBookingRepository_UpdateStatusChecksCurrentStatus(t *testing.T) {
	repo := NewBookingRepository(setupTestDB(t))
	ctx := context.Background()
	b := seedBooking(t, repo)

	require.NoError(t, repo.UpdateStatus(ctx, "t1", b.ID, domain.BookingBooked, domain.BookingCompleted, nil))

	err := repo.UpdateStatus(ctx, "t1", b.ID, domain.BookingBooked, domain.BookingCancelled, nil)
	assert.ErrorIs(t, err, ErrStale)

	err = repo.UpdateStatus(ctx, "t1", "missing", domain.BookingBooked, domain.BookingCancelled, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetByID(ctx, "t1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, got.Status)
}

func TestStaffRepository_CountActive(t *testing.T) {
	repo := NewStaffRepository(setupTestDB(t))
	ctx := context.Background()

	timur := &domain.Staff{TenantID: "t1", Name: "Timur", Role: domain.StaffPhotographer, Active: true}
	dana := &domain.Staff{TenantID: "t1", Name: "Dana", Role: domain.StaffEditor, Active: true}
	elsewhere := &domain.Staff{TenantID: "t2", Name: "Arman", Role: domain.StaffAssistant, Active: true}
	for _, s := range []*domain.Staff{timur, dana, elsewhere} {
		require.NoError(t, repo.Create(ctx, s))
	}
	require.NoError(t, repo.SetActive(ctx, "t1", dana.ID, false))

	n, err := repo.CountActive(ctx, "t1", []string{timur.ID, dana.ID, elsewhere.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.CountActive(ctx, "t1", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
