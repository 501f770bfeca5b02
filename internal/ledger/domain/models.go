package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seatfee/internal/period"
)

type Status string

const (
	StatusPending Status = "PENDING"
	StatusDue     Status = "DUE"
	StatusPaid    Status = "PAID"
)

// LedgerRecord is the authoritative billing state of one subscriber period.
//
// Money always balances as
// PaidAmount + AdvanceApplied + CarriedForwardOut + Residual() == Total().
// CarriedForwardOut is the part of this period's balance folded into the
// next period's DueCarriedForward.
type LedgerRecord struct {
	ID                snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID      snowflake.ID    `gorm:"not null;uniqueIndex:ux_ledger_records_subscriber_period,priority:1" json:"subscriber_id"`
	Period            string          `gorm:"type:varchar(7);not null;uniqueIndex:ux_ledger_records_subscriber_period,priority:2" json:"period"`
	BaseFee           decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"base_fee"`
	DueCarriedForward decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"due_carried_forward"`
	PaidAmount        decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"paid_amount"`
	AdvanceApplied    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"advance_applied"`
	CarriedForwardOut decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"carried_forward_out"`
	Status            Status          `gorm:"type:varchar(16);not null;index" json:"status"`
	CoveredByAdvance  bool            `gorm:"not null" json:"covered_by_advance"`
	Locked            bool            `gorm:"not null" json:"locked"`
	DueDate           time.Time       `gorm:"not null;index" json:"due_date"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null" json:"updated_at"`
}

func (LedgerRecord) TableName() string { return "ledger_records" }

func (r *LedgerRecord) Total() decimal.Decimal {
	return Round2(r.BaseFee.Add(r.DueCarriedForward))
}

// Outstanding is what has not been paid or covered yet, including any part
// already carried forward.
func (r *LedgerRecord) Outstanding() decimal.Decimal {
	return Max0(Round2(r.Total().Sub(r.PaidAmount).Sub(r.AdvanceApplied)))
}

// Residual is the balance still owed on this period itself.
func (r *LedgerRecord) Residual() decimal.Decimal {
	return Max0(Round2(r.Outstanding().Sub(r.CarriedForwardOut)))
}

func (r *LedgerRecord) PeriodKey() period.Period {
	p, err := period.Parse(r.Period)
	if err != nil {
		return period.Period{}
	}
	return p
}

// IsOverdue reports whether the grace window after the due date has passed.
func (r *LedgerRecord) IsOverdue(now time.Time, grace time.Duration) bool {
	return r.DueDate.Add(grace).Before(now)
}

// MarkPaid moves the record to its terminal state.
func (r *LedgerRecord) MarkPaid(now time.Time) {
	r.Status = StatusPaid
	r.Locked = true
	paidAt := now
	r.PaidAt = &paidAt
	r.UpdatedAt = now
}
