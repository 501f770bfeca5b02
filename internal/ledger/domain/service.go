package domain

import (
	"context"
	"time"

	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	"github.com/smallbiznis/seatfee/internal/period"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"gorm.io/gorm"
)

type EnsureRequest struct {
	SubscriberID string
	Period       string
}

type MarkAsDueRequest struct {
	SubscriberID string
	Period       string
	ReminderDate *time.Time
}

type MarkAsDueResponse struct {
	Record  LedgerRecord         `json:"record"`
	Tracker duedomain.DueTracker `json:"tracker"`
}

// EnsureResult is the record asked for plus every record the call created,
// oldest first.
type EnsureResult struct {
	Record  *LedgerRecord
	Created []LedgerRecord
}

type Service interface {
	EnsureLedgerRecordExists(ctx context.Context, req EnsureRequest) (LedgerRecord, error)
	MarkAsDue(ctx context.Context, req MarkAsDueRequest) (MarkAsDueResponse, error)

	// EnsureTx finds or creates the record for period inside the caller's
	// transaction, generating any missing periods between the subscriber's
	// latest record and period first.
	EnsureTx(ctx context.Context, tx *gorm.DB, subscriber *subscriberdomain.Subscriber, p period.Period, now time.Time) (EnsureResult, error)
	// GenerateTx creates the record for one billing cycle with its
	// carry-forward. It returns the existing record when there is one.
	GenerateTx(ctx context.Context, tx *gorm.DB, subscriber *subscriberdomain.Subscriber, p period.Period, dueDate time.Time, now time.Time, source string) (*LedgerRecord, bool, error)
	// PromoteOverdueTx turns a PENDING record whose grace window has passed
	// into DUE and tracks it.
	PromoteOverdueTx(ctx context.Context, tx *gorm.DB, record *LedgerRecord, now time.Time) (bool, error)
	// PublishCreated reports records created by a committed transaction.
	PublishCreated(ctx context.Context, source string, records []LedgerRecord)
}

// Record sources, used for metrics and audit.
const (
	SourceBillingCycle = "billing_cycle"
	SourcePayment      = "payment"
	SourceDueMarking   = "due_marking"
	SourceAdvance      = "advance"
	SourceEnsure       = "ensure"
)

var (
	ErrInvalidAmount        = errs.Validation("invalid_amount")
	ErrPeriodInFuture       = errs.Validation("period_in_future")
	ErrRecordNotFound       = errs.NotFound("ledger_record_not_found")
	ErrRecordLocked         = errs.Conflict("ledger_record_locked")
	ErrCoveredByAdvance     = errs.Conflict("ledger_record_covered_by_advance")
	ErrPeriodCarriedForward = errs.Conflict("ledger_period_carried_forward")
	ErrPeriodOutOfOrder     = errs.Conflict("ledger_period_out_of_order")
)
