package domain

import (
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seatfee/internal/period"
	"gorm.io/datatypes"
)

// DueTracker follows one unbroken run of overdue periods for a subscriber.
// At most one tracker per subscriber is unresolved.
//
// TotalDueAmount is the outstanding balance of the latest tracked period.
// Carry-forward already folds earlier periods into it, so it is never a sum.
type DueTracker struct {
	ID                 snowflake.ID                `gorm:"primaryKey" json:"id"`
	SubscriberID       snowflake.ID                `gorm:"not null;index;uniqueIndex:ux_due_trackers_open,where:resolved = false" json:"subscriber_id"`
	Periods            datatypes.JSONSlice[string] `gorm:"not null" json:"periods"`
	TotalDueAmount     decimal.Decimal             `gorm:"type:numeric(14,2);not null" json:"total_due_amount"`
	DueSince           time.Time                   `gorm:"not null" json:"due_since"`
	EscalationLevel    int                         `gorm:"not null" json:"escalation_level"`
	DaysOverdue        int                         `gorm:"not null" json:"days_overdue"`
	ReminderCount      int                         `gorm:"not null" json:"reminder_count"`
	LastReminderSentAt *time.Time                  `json:"last_reminder_sent_at,omitempty"`
	NextReminderDue    *time.Time                  `gorm:"index" json:"next_reminder_due,omitempty"`
	Resolved           bool                        `gorm:"not null;index" json:"resolved"`
	ResolvedAt         *time.Time                  `json:"resolved_at,omitempty"`
	CreatedAt          time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time                   `gorm:"not null" json:"updated_at"`
}

func (DueTracker) TableName() string { return "due_trackers" }

func (t *DueTracker) Contains(key string) bool {
	return slices.Contains(t.Periods, key)
}

func (t *DueTracker) FirstPeriod() (period.Period, bool) {
	if len(t.Periods) == 0 {
		return period.Period{}, false
	}
	p, err := period.Parse(t.Periods[0])
	return p, err == nil
}

func (t *DueTracker) LastPeriod() (period.Period, bool) {
	if len(t.Periods) == 0 {
		return period.Period{}, false
	}
	p, err := period.Parse(t.Periods[len(t.Periods)-1])
	return p, err == nil
}

// KeysBefore returns the tracked periods strictly before p.
func (t *DueTracker) KeysBefore(p period.Period) []period.Period {
	var keys []period.Period
	for _, key := range t.Periods {
		kp, err := period.Parse(key)
		if err != nil {
			continue
		}
		if kp.Before(p) {
			keys = append(keys, kp)
		}
	}
	return keys
}

// RemoveThrough drops every tracked period up to and including p.
func (t *DueTracker) RemoveThrough(p period.Period) {
	kept := make([]string, 0, len(t.Periods))
	for _, key := range t.Periods {
		kp, err := period.Parse(key)
		if err == nil && !kp.After(p) {
			continue
		}
		kept = append(kept, key)
	}
	t.Periods = kept
}

// Resolve closes the tracker and clears its escalation state.
func (t *DueTracker) Resolve(now time.Time) {
	t.Resolved = true
	resolvedAt := now
	t.ResolvedAt = &resolvedAt
	t.Periods = datatypes.JSONSlice[string]{}
	t.TotalDueAmount = decimal.Zero
	t.EscalationLevel = 0
	t.DaysOverdue = 0
	t.NextReminderDue = nil
	t.UpdatedAt = now
}

// CurrentDaysOverdue is derived from DueSince, never from the persisted
// snapshot.
func (t *DueTracker) CurrentDaysOverdue(now time.Time) int {
	return DaysOverdue(t.DueSince, now)
}

func (t *DueTracker) CurrentTier(now time.Time) int {
	return TierFor(t.CurrentDaysOverdue(now))
}
