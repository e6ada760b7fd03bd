package studio

import (
	"github.com/shopspring/decimal"

	"studiodesk/internal/domain"
)

type ConfigRequest struct {
	StudioName    string          `json:"studio_name" binding:"required"`
	Rooms         []string        `json:"rooms"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	BufferMinutes int             `json:"buffer_minutes" binding:"gte=0,lte=240"`
	OpenTime      string          `json:"open_time"`
	CloseTime     string          `json:"close_time"`
	Currency      string          `json:"currency" binding:"omitempty,len=3"`
}

// ConfigView is what the settings screen reads. Onboarded is false while the
// defaults are being shown.
type ConfigView struct {
	*domain.StudioConfig
	Onboarded  bool `json:"onboarded"`
	PINEnabled bool `json:"pin_enabled"`
}

type SetPINRequest struct {
	PIN string `json:"pin"`
}

type ClientRequest struct {
	Name  string `json:"name" validate:"required,max=255"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
	Email string `json:"email" validate:"omitempty,email"`
	Notes string `json:"notes"`
}

type ImportClientsRequest struct {
	Clients []ClientRequest `json:"clients" binding:"required,min=1,max=5000"`
}

// ImportResult counts what happened to each row of an import.
type ImportResult struct {
	Created   int            `json:"created"`
	Duplicate int            `json:"duplicate"`
	Invalid   map[int]string `json:"invalid,omitempty"`
}

type StaffRequest struct {
	Name string           `json:"name" binding:"required"`
	Role domain.StaffRole `json:"role" binding:"omitempty,oneof=photographer editor assistant manager"`
}
