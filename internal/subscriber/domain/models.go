package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Subscriber is owned by the subscriber directory. Billing only reads it and
// writes back NextBillingDate.
type Subscriber struct {
	ID               snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name             string          `gorm:"not null" json:"name"`
	BaseFee          decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_fee"`
	BillingAnchorDay int             `gorm:"not null" json:"billing_anchor_day"`
	NextBillingDate  time.Time       `gorm:"not null;index" json:"next_billing_date"`
	Active           bool            `gorm:"not null;index" json:"active"`
	CreatedAt        time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"not null" json:"updated_at"`
}

func (Subscriber) TableName() string { return "subscribers" }
