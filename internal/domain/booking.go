package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingInquiry   BookingStatus = "inquiry"
	BookingBooked    BookingStatus = "booked"
	BookingShooting  BookingStatus = "shooting"
	BookingCulling   BookingStatus = "culling"
	BookingEditing   BookingStatus = "editing"
	BookingReview    BookingStatus = "review"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// BookingPipeline is the ordered lifecycle a booking moves through.
var BookingPipeline = []BookingStatus{
	BookingInquiry,
	BookingBooked,
	BookingShooting,
	BookingCulling,
	BookingEditing,
	BookingReview,
	BookingCompleted,
}

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

var (
	ErrInvalidClock  = errors.New("invalid start time")
	ErrInvalidDate   = errors.New("invalid booking date")
	ErrItemTotal     = errors.New("line item total does not match quantity x unit price")
	ErrInvalidStatus = errors.New("invalid booking status")
)

func (s BookingStatus) Valid() bool {
	if s == BookingCancelled {
		return true
	}
	for _, p := range BookingPipeline {
		if p == s {
			return true
		}
	}
	return false
}

// Terminal reports whether no further status change is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingCompleted || s == BookingCancelled
}

// CanTransition allows free movement between pipeline stages (the board is
// drag-and-drop) but never out of a terminal state.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	if !to.Valid() || s.Terminal() || s == to {
		return false
	}
	return true
}

type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

type Discount struct {
	Type  DiscountType    `json:"type" validate:"required,oneof=fixed percent"`
	Value decimal.Decimal `json:"value"`
}

type LineItem struct {
	Description string          `json:"description" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// ExpectedTotal is quantity x unit price.
func (li LineItem) ExpectedTotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

type Booking struct {
	ID            string           `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID      string           `json:"tenant_id" gorm:"type:varchar(64);not null;index:idx_bookings_tenant_date"`
	ClientID      string           `json:"client_id" gorm:"type:varchar(36);index"`
	ClientName    string           `json:"client_name" gorm:"type:varchar(255)"`
	Date          string           `json:"date" gorm:"type:varchar(10);not null;index:idx_bookings_tenant_date"`
	StartTime     string           `json:"start_time" gorm:"type:varchar(5);not null"`
	DurationHours float64          `json:"duration_hours" gorm:"not null"`
	Room          string           `json:"room" gorm:"type:varchar(255);not null;index"`
	Price         decimal.Decimal  `json:"price" gorm:"type:decimal(20,4);not null;default:0"`
	PaidAmount    decimal.Decimal  `json:"paid_amount" gorm:"type:decimal(20,4);not null;default:0"`
	Items         []LineItem       `json:"items" gorm:"type:text;serializer:json"`
	Discount      *Discount        `json:"discount,omitempty" gorm:"type:text;serializer:json"`
	TaxRate       *decimal.Decimal `json:"tax_rate,omitempty" gorm:"type:decimal(10,4)"`
	Status        BookingStatus    `json:"status" gorm:"type:varchar(16);not null;index"`
	StaffIDs      []string         `json:"staff_ids" gorm:"type:text;serializer:json"`
	Notes         string           `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy     string           `json:"created_by,omitempty" gorm:"type:varchar(64)"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	CancelledAt   *time.Time       `json:"cancelled_at,omitempty"`
}

func (Booking) TableName() string { return "bookings" }

func (b *Booking) BeforeCreate(_ *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// StartMinutes returns the start time as minutes since midnight.
func (b *Booking) StartMinutes() (int, error) {
	return ParseClock(b.StartTime)
}

// DurationMinutes rounds the fractional hour duration to whole minutes.
func (b *Booking) DurationMinutes() int {
	return int(b.DurationHours*60 + 0.5)
}

// Subtotal sums the line item totals.
func (b *Booking) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range b.Items {
		sum = sum.Add(it.Total)
	}
	return sum
}

// Total applies the discount and the tax snapshot to the subtotal. Bookings
// without items are priced by Price alone.
func (b *Booking) Total() decimal.Decimal {
	base := b.Price
	if len(b.Items) > 0 {
		base = b.Subtotal()
	}
	if b.Discount != nil {
		switch b.Discount.Type {
		case DiscountFixed:
			base = base.Sub(b.Discount.Value)
		case DiscountPercent:
			base = base.Sub(base.Mul(b.Discount.Value).Div(decimal.NewFromInt(100)))
		}
		if base.IsNegative() {
			base = decimal.Zero
		}
	}
	if b.TaxRate != nil && b.TaxRate.IsPositive() {
		base = base.Add(base.Mul(*b.TaxRate).Div(decimal.NewFromInt(100)))
	}
	return base.Round(2)
}

// Outstanding is what the client still owes.
func (b *Booking) Outstanding() decimal.Decimal {
	return b.Total().Sub(b.PaidAmount)
}

// NormalizeItems recomputes every missing line total and rejects totals that
// disagree with quantity x unit price.
func (b *Booking) NormalizeItems() error {
	for i := range b.Items {
		want := b.Items[i].ExpectedTotal()
		if b.Items[i].Total.IsZero() {
			b.Items[i].Total = want
			continue
		}
		if !b.Items[i].Total.Equal(want) {
			return fmt.Errorf("%w: item %d (%s)", ErrItemTotal, i, b.Items[i].Description)
		}
	}
	return nil
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// FormatClock is the inverse of ParseClock. Values past midnight wrap.
func FormatClock(minutes int) string {
	minutes = ((minutes % (24 * 60)) + 24*60) % (24 * 60)
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate validates a calendar day in YYYY-MM-DD form.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return d, nil
}
