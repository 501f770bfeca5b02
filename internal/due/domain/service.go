package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seatfee/internal/period"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"gorm.io/gorm"
)

// TrackInput describes a period that just became DUE.
type TrackInput struct {
	SubscriberID snowflake.ID
	Period       period.Period
	Outstanding  decimal.Decimal
	DueDate      time.Time
	// ReminderAt seeds the first reminder of a new tracker and defaults to
	// now. On an open tracker it only pulls the next reminder earlier.
	ReminderAt *time.Time
}

type SettleResult struct {
	Tracker  *DueTracker
	Settled  []string
	Resolved bool
}

type SweepResult struct {
	Processed int                   `json:"processed"`
	Escalated int                   `json:"escalated"`
	Skipped   int                   `json:"skipped"`
	Errors    []errs.BatchItemError `json:"errors"`
}

type Service interface {
	RunEscalationSweep(ctx context.Context, now time.Time) (SweepResult, error)
	FindOpen(ctx context.Context, subscriberID snowflake.ID) (*DueTracker, error)

	FindOpenTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID) (*DueTracker, error)
	// TrackTx adds the period to the open tracker, creating one when absent,
	// and resyncs TotalDueAmount when the period is the latest tracked.
	TrackTx(ctx context.Context, tx *gorm.DB, in TrackInput, now time.Time) (*DueTracker, error)
	// SettleTx marks every chained period before p as PAID after p itself
	// was paid in full, then drops p and earlier keys from the tracker.
	SettleTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, now time.Time) (SettleResult, error)
}

var (
	ErrNonContiguousDuePeriods = errs.Conflict("non_contiguous_due_periods")
	ErrTrackerNotFound         = errs.NotFound("due_tracker_not_found")
)
