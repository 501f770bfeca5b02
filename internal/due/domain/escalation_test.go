package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seatfee/internal/period"
	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestTierFor(t *testing.T) {
	cases := map[int]int{
		-3: 0, 0: 0,
		1: 1, 2: 1,
		3: 2, 6: 2,
		7: 3, 14: 3,
		15: 4, 29: 4,
		30: 5, 365: 5,
	}
	for days, want := range cases {
		assert.Equal(t, want, TierFor(days), "days=%d", days)
		assert.Equal(t, TierFor(days), TierFor(days), "tier must be stable for days=%d", days)
	}
}

func TestDaysOverdueUsesCalendarDays(t *testing.T) {
	dueSince := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysOverdue(dueSince, dueSince.Add(-48*time.Hour)))
	assert.Equal(t, 0, DaysOverdue(dueSince, dueSince.Add(23*time.Hour)))
	assert.Equal(t, 1, DaysOverdue(dueSince, time.Date(2025, 2, 1, 0, 5, 0, 0, time.UTC)))
	assert.Equal(t, 10, DaysOverdue(dueSince, time.Date(2025, 2, 10, 18, 0, 0, 0, time.UTC)))
}

func TestTrackerKeyHelpers(t *testing.T) {
	tracker := DueTracker{Periods: datatypes.JSONSlice[string]{"2024-11", "2024-12", "2025-01"}}

	first, ok := tracker.FirstPeriod()
	assert.True(t, ok)
	assert.Equal(t, "2024-11", first.String())
	last, _ := tracker.LastPeriod()
	assert.Equal(t, "2025-01", last.String())

	before := tracker.KeysBefore(period.Period{Year: 2025, Month: time.January})
	assert.Len(t, before, 2)

	tracker.RemoveThrough(period.Period{Year: 2024, Month: time.December})
	assert.Equal(t, []string{"2025-01"}, []string(tracker.Periods))
	assert.True(t, tracker.Contains("2025-01"))
	assert.False(t, tracker.Contains("2024-11"))
}

func TestResolveClearsEscalation(t *testing.T) {
	next := time.Now()
	tracker := DueTracker{
		Periods:         datatypes.JSONSlice[string]{"2025-01"},
		TotalDueAmount:  decimal.NewFromInt(300),
		EscalationLevel: 3,
		DaysOverdue:     9,
		ReminderCount:   4,
		NextReminderDue: &next,
	}
	now := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)
	tracker.Resolve(now)

	assert.True(t, tracker.Resolved)
	assert.Equal(t, now, *tracker.ResolvedAt)
	assert.Empty(t, tracker.Periods)
	assert.True(t, tracker.TotalDueAmount.IsZero())
	assert.Zero(t, tracker.EscalationLevel)
	assert.Nil(t, tracker.NextReminderDue)
	assert.Equal(t, 4, tracker.ReminderCount)
}
