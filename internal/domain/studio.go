package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultOpenTime      = "09:00"
	DefaultCloseTime     = "21:00"
	DefaultBufferMinutes = 0
)

// StudioConfig holds the per-tenant settings. It is created during onboarding
// and edited from the settings screens afterwards.
type StudioConfig struct {
	TenantID       string          `json:"tenant_id" gorm:"type:varchar(64);primaryKey"`
	StudioName     string          `json:"studio_name" gorm:"type:varchar(255);not null"`
	Rooms          []string        `json:"rooms" gorm:"type:text;serializer:json"`
	TaxRate        decimal.Decimal `json:"tax_rate" gorm:"type:decimal(10,4);not null;default:0"`
	BufferMinutes  int             `json:"buffer_minutes" gorm:"not null;default:0"`
	OpenTime       string          `json:"open_time" gorm:"type:varchar(5)"`
	CloseTime      string          `json:"close_time" gorm:"type:varchar(5)"`
	Currency       string          `json:"currency" gorm:"type:varchar(8)"`
	FinancePINHash string          `json:"-" gorm:"type:varchar(255)"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func (StudioConfig) TableName() string { return "studio_configs" }

// HasRoom reports whether the room is configured. An empty room list means the
// studio has not restricted room names yet.
func (c *StudioConfig) HasRoom(room string) bool {
	if len(c.Rooms) == 0 {
		return true
	}
	for _, r := range c.Rooms {
		if r == room {
			return true
		}
	}
	return false
}

// Hours returns the opening window in minutes since midnight, falling back to
// the defaults for unset or malformed values.
func (c *StudioConfig) Hours() (openAt, closeAt int) {
	openAt, err := ParseClock(c.OpenTime)
	if err != nil {
		openAt, _ = ParseClock(DefaultOpenTime)
	}
	closeAt, err = ParseClock(c.CloseTime)
	if err != nil {
		closeAt, _ = ParseClock(DefaultCloseTime)
	}
	return openAt, closeAt
}

// DefaultStudioConfig is used until onboarding stores a real configuration.
func DefaultStudioConfig(tenantID string) *StudioConfig {
	return &StudioConfig{
		TenantID:      tenantID,
		StudioName:    "Studio",
		BufferMinutes: DefaultBufferMinutes,
		OpenTime:      DefaultOpenTime,
		CloseTime:     DefaultCloseTime,
		TaxRate:       decimal.Zero,
	}
}
