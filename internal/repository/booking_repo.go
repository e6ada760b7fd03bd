package repository

import (
	"context"
	"fmt"
	"time"

	"studiodesk/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// editableBookingColumns are the columns a booking edit may touch. paid_amount
// is absent: it moves only through the ledger.
var editableBookingColumns = map[string]bool{
	"client_id":      true,
	"client_name":    true,
	"date":           true,
	"start_time":     true,
	"duration_hours": true,
	"room":           true,
	"price":          true,
	"items":          true,
	"discount":       true,
	"tax_rate":       true,
	"staff_ids":      true,
	"notes":          true,
}

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BookingRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&b).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}

// GetForUpdate reads the booking with a row lock held until the surrounding
// transaction ends.
func (r *BookingRepository) GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&b).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &b, nil
}

func (r *BookingRepository) ListByDate(ctx context.Context, tenantID, date string) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND date = ?", tenantID, date).
		Order("start_time").
		Find(&rows).Error
	return rows, err
}

func (r *BookingRepository) ListByRoomAndDate(ctx context.Context, tenantID, room, date string) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND room = ? AND date = ?", tenantID, room, date).
		Order("start_time").
		Find(&rows).Error
	return rows, err
}

// ListRange returns bookings with from <= date <= to. Dates are stored as
// YYYY-MM-DD so string comparison orders them correctly.
func (r *BookingRepository) ListRange(ctx context.Context, tenantID, from, to string) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND date >= ? AND date <= ?", tenantID, from, to).
		Order("date, start_time").
		Find(&rows).Error
	return rows, err
}

// UpdateDetails writes only the given columns of b, so fields the caller did
// not change keep whatever the row holds now.
func (r *BookingRepository) UpdateDetails(ctx context.Context, b *domain.Booking, columns []string) error {
	selected := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		if !editableBookingColumns[c] {
			return fmt.Errorf("booking column %q is not editable", c)
		}
		selected = append(selected, c)
	}
	b.UpdatedAt = time.Now().UTC()
	selected = append(selected, "updated_at")

	tx := r.db.WithContext(ctx).
		Model(b).
		Where("tenant_id = ?", b.TenantID).
		Select(selected).
		Updates(b)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateStatus moves the booking from one status to another. When the stored
// status is no longer from nothing is written and ErrStale is returned.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tenantID, id string, from, to domain.BookingStatus, cancelledAt *time.Time) error {
	tx := r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("tenant_id = ? AND id = ? AND status = ?", tenantID, id, from).
		Updates(map[string]any{
			"status":       to,
			"cancelled_at": cancelledAt,
			"updated_at":   time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tenantID, id); err != nil {
			return err
		}
		return ErrStale
	}
	return nil
}

// SetPaidAmount is reserved for the ledger, which calls it inside the same
// transaction that writes the matching ledger entry.
func (r *BookingRepository) SetPaidAmount(ctx context.Context, tenantID, id string, paid decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&domain.Booking{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Updates(map[string]any{
			"paid_amount": paid,
			"updated_at":  time.Now().UTC(),
		}).Error
}
