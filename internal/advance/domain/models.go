package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AdvanceBalance is a subscriber's prepaid credit pool.
// RemainingAmount == TotalAmount - sum(applications) and never drops below
// zero.
type AdvanceBalance struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID    snowflake.ID    `gorm:"not null;uniqueIndex" json:"subscriber_id"`
	TotalAmount     decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"total_amount"`
	RemainingAmount decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"remaining_amount"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"not null" json:"updated_at"`
}

func (AdvanceBalance) TableName() string { return "advance_balances" }

// AdvanceApplication is one period paid from the advance pool.
type AdvanceApplication struct {
	ID           snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID snowflake.ID    `gorm:"not null;uniqueIndex:ux_advance_applications_period,priority:1" json:"subscriber_id"`
	Period       string          `gorm:"type:varchar(7);not null;uniqueIndex:ux_advance_applications_period,priority:2" json:"period"`
	Amount       decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Trigger      string          `gorm:"type:varchar(32);not null" json:"trigger"`
	CreatedAt    time.Time       `gorm:"not null" json:"created_at"`
}

func (AdvanceApplication) TableName() string { return "advance_applications" }
