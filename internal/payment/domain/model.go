package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Payment outcomes.
const (
	OutcomeSettled = "settled"
	OutcomePartial = "partial"
)

// Payment methods accepted by RecordPayment.
const (
	MethodCash         = "cash"
	MethodUPI          = "upi"
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodCheque       = "cheque"
	MethodOther        = "other"
)

// Payment journals one recorded payment against a ledger period.
// Amount == AppliedAmount + SurplusAmount; the surplus went to the advance
// pool.
type Payment struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	SubscriberID   snowflake.ID    `gorm:"not null;index" json:"subscriber_id"`
	LedgerRecordID snowflake.ID    `gorm:"not null;index" json:"ledger_record_id"`
	Period         string          `gorm:"type:varchar(7);not null" json:"period"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	AppliedAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"applied_amount"`
	SurplusAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"surplus_amount"`
	ResidualDue    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"residual_due"`
	Method         string          `gorm:"type:varchar(32);not null" json:"method"`
	Outcome        string          `gorm:"type:varchar(16);not null" json:"outcome"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
}

func (Payment) TableName() string { return "fee_payments" }
