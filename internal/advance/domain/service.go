package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/internal/period"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"gorm.io/gorm"
)

type AddAdvanceRequest struct {
	SubscriberID string
	Amount       decimal.Decimal
}

type ApplyAdvanceRequest struct {
	SubscriberID string
	Period       string
}

type ApplyAdvanceResponse struct {
	Record  ledgerdomain.LedgerRecord `json:"record"`
	Balance AdvanceBalance            `json:"balance"`
}

// Application triggers.
const (
	TriggerManual         = "manual"
	TriggerBillingCycle   = "billing_cycle"
	TriggerPaymentSurplus = "payment_surplus"
)

type Service interface {
	AddAdvance(ctx context.Context, req AddAdvanceRequest) (AdvanceBalance, error)
	ApplyAdvanceToMonth(ctx context.Context, req ApplyAdvanceRequest) (ApplyAdvanceResponse, error)
	GetBalance(ctx context.Context, subscriberID snowflake.ID) (*AdvanceBalance, error)

	AddAdvanceTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, amount decimal.Decimal, now time.Time) (*AdvanceBalance, error)
	// ApplyToMonthTx pays the period's whole outstanding balance from the
	// pool. amount must equal that balance.
	ApplyToMonthTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, amount decimal.Decimal, trigger string, now time.Time) (*ledgerdomain.LedgerRecord, *AdvanceBalance, error)
	// ApplyIfAvailableTx is ApplyToMonthTx inside a savepoint. Any failure is
	// logged and rolled back to the savepoint; it reports whether the advance
	// was applied.
	ApplyIfAvailableTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, now time.Time) bool
}

var (
	ErrInsufficientAdvance   = errs.Conflict("insufficient_advance")
	ErrPeriodAlreadyCovered  = errs.Conflict("period_already_covered")
	ErrAdvanceAmountMismatch = errs.Validation("advance_amount_mismatch")
	ErrNothingOutstanding    = errs.Conflict("nothing_outstanding")
)
