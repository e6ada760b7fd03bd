package booking

import (
	"slices"

	"github.com/shopspring/decimal"

	"studiodesk/internal/domain"
)

type CreateBookingRequest struct {
	ClientID      string               `json:"client_id"`
	ClientName    string               `json:"client_name"`
	Date          string               `json:"date" binding:"required"`
	StartTime     string               `json:"start_time" binding:"required"`
	DurationHours float64              `json:"duration_hours" binding:"required,gt=0"`
	Room          string               `json:"room" binding:"required"`
	Price         decimal.Decimal      `json:"price"`
	Items         []domain.LineItem    `json:"items"`
	Discount      *domain.Discount     `json:"discount"`
	TaxRate       *decimal.Decimal     `json:"tax_rate"`
	StaffIDs      []string             `json:"staff_ids"`
	Notes         string               `json:"notes"`
	Status        domain.BookingStatus `json:"status"`

	// Deposit taken at booking time; needs AccountID when positive.
	Deposit   decimal.Decimal `json:"deposit"`
	AccountID string          `json:"account_id"`
}

// UpdateBookingRequest edits a booking. Only the fields present change. The
// amount paid is not editable here, it moves through payments and refunds.
type UpdateBookingRequest struct {
	ClientID      *string            `json:"client_id"`
	ClientName    *string            `json:"client_name"`
	Date          *string            `json:"date"`
	StartTime     *string            `json:"start_time"`
	DurationHours *float64           `json:"duration_hours"`
	Room          *string            `json:"room"`
	Price         *decimal.Decimal   `json:"price"`
	Items         *[]domain.LineItem `json:"items"`
	Discount      *domain.Discount   `json:"discount"`
	TaxRate       *decimal.Decimal   `json:"tax_rate"`
	StaffIDs      *[]string          `json:"staff_ids"`
	Notes         *string            `json:"notes"`
}

func (r UpdateBookingRequest) movesSlot() bool {
	return r.Date != nil || r.StartTime != nil || r.DurationHours != nil || r.Room != nil
}

// columns lists the stored columns the request writes.
func (r UpdateBookingRequest) columns() []string {
	var cols []string
	add := func(present bool, names ...string) {
		if !present {
			return
		}
		for _, n := range names {
			if !slices.Contains(cols, n) {
				cols = append(cols, n)
			}
		}
	}
	add(r.ClientID != nil, "client_id", "client_name")
	add(r.ClientName != nil, "client_name")
	add(r.Date != nil, "date")
	add(r.StartTime != nil, "start_time")
	add(r.DurationHours != nil, "duration_hours")
	add(r.Room != nil, "room")
	add(r.Price != nil, "price")
	add(r.Items != nil, "items", "price")
	add(r.Discount != nil, "discount")
	add(r.TaxRate != nil, "tax_rate")
	add(r.StaffIDs != nil, "staff_ids")
	add(r.Notes != nil, "notes")
	return cols
}

type UpdateStatusRequest struct {
	Status domain.BookingStatus `json:"status" binding:"required"`
}

// CheckRequest asks whether a slot is free. Known carries the bookings the
// client already holds; when absent the server reads the day itself.
type CheckRequest struct {
	ID            string           `json:"id"`
	Date          string           `json:"date" binding:"required"`
	StartTime     string           `json:"start_time" binding:"required"`
	DurationHours float64          `json:"duration_hours" binding:"required,gt=0"`
	Room          string           `json:"room" binding:"required"`
	Known         []domain.Booking `json:"known"`
}

type BookingView struct {
	*domain.Booking
	Total       decimal.Decimal `json:"total"`
	Outstanding decimal.Decimal `json:"outstanding"`
	EndTime     string          `json:"end_time"`
}

func newBookingView(b *domain.Booking) BookingView {
	end := ""
	if start, err := b.StartMinutes(); err == nil {
		end = domain.FormatClock(start + b.DurationMinutes())
	}
	return BookingView{
		Booking:     b,
		Total:       b.Total(),
		Outstanding: b.Outstanding(),
		EndTime:     end,
	}
}

func newBookingViews(rows []domain.Booking) []BookingView {
	out := make([]BookingView, 0, len(rows))
	for i := range rows {
		out = append(out, newBookingView(&rows[i]))
	}
	return out
}
