package service_test

import (
	"context"
	"sync"
	"testing"

	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	"github.com/smallbiznis/seatfee/internal/feetest"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/internal/notify"
	"github.com/smallbiznis/seatfee/internal/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// overdueEnv seeds one subscriber whose January record went DUE on Jan 10.
func overdueEnv(t *testing.T) (*feetest.Env, *duedomain.DueTracker) {
	t.Helper()

	env := feetest.New(t, feetest.Date(2025, 1, 10))
	sub := env.AddSubscriber(t, "500", 1, feetest.Date(2025, 1, 1))
	_, err := env.Ledger.EnsureLedgerRecordExists(context.Background(), ledgerdomain.EnsureRequest{
		SubscriberID: sub.ID.String(),
		Period:       "2025-01",
	})
	require.NoError(t, err)

	tracker := env.OpenTracker(t, sub.ID)
	require.NotNil(t, tracker)
	return env, tracker
}

func TestEscalationSweepSendsAndEscalates(t *testing.T) {
	ctx := context.Background()
	env, tracker := overdueEnv(t)

	result, err := env.Due.RunEscalationSweep(ctx, env.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Escalated)
	assert.Empty(t, result.Errors)

	require.Equal(t, 1, env.Notifier.Count())
	sent := env.Notifier.Sent[0]
	assert.Equal(t, notify.TypeDueReminder, sent.Type)
	assert.Equal(t, tracker.SubscriberID.String(), sent.SubscriberID)

	updated := env.OpenTracker(t, tracker.SubscriberID)
	require.NotNil(t, updated)
	assert.Equal(t, 3, updated.EscalationLevel)
	assert.Equal(t, 9, updated.DaysOverdue)
	assert.Equal(t, 1, updated.ReminderCount)
	require.NotNil(t, updated.NextReminderDue)
	assert.Equal(t, feetest.Date(2025, 1, 18), updated.NextReminderDue.UTC())

	// Nothing is due again until the next reminder date.
	result, err = env.Due.RunEscalationSweep(ctx, env.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Equal(t, 1, env.Notifier.Count())
}

func TestEscalationSweepKeepsScheduleWhenDeliveryFails(t *testing.T) {
	ctx := context.Background()
	env, tracker := overdueEnv(t)
	env.Notifier.Fail(feetest.ErrDeliveryFailed)

	result, err := env.Due.RunEscalationSweep(ctx, env.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, tracker.SubscriberID.String(), result.Errors[0].SubscriberID)
	assert.Equal(t, "2025-01", result.Errors[0].Period)
	assert.ErrorIs(t, result.Errors[0], feetest.ErrDeliveryFailed)

	unchanged := env.OpenTracker(t, tracker.SubscriberID)
	require.NotNil(t, unchanged)
	assert.Zero(t, unchanged.ReminderCount)
	assert.Zero(t, unchanged.EscalationLevel)
	assert.Equal(t, tracker.NextReminderDue.UTC(), unchanged.NextReminderDue.UTC())

	// A later sweep retries the same tracker.
	env.Notifier.Fail(nil)
	result, err = env.Due.RunEscalationSweep(ctx, env.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
}

func TestEscalationSweepSkipsTrackerResolvedAfterListing(t *testing.T) {
	ctx := context.Background()
	env, tracker := overdueEnv(t)

	// Resolve the tracker right after the sweep lists it, as a payment
	// committing between the list and the reminder would.
	var once sync.Once
	require.NoError(t, env.DB.Callback().Query().After("gorm:query").Register("test:resolve_listed_tracker", func(db *gorm.DB) {
		if db.Statement.Table != "due_trackers" {
			return
		}
		once.Do(func() {
			require.NoError(t, db.Session(&gorm.Session{NewDB: true}).
				Exec("UPDATE due_trackers SET resolved = ? WHERE id = ?", true, tracker.ID).Error)
		})
	}))

	result, err := env.Due.RunEscalationSweep(ctx, env.Now())
	require.NoError(t, err)
	assert.Zero(t, result.Processed)
	assert.Zero(t, result.Escalated)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)
	assert.Zero(t, env.Notifier.Count())
	assert.Nil(t, env.OpenTracker(t, tracker.SubscriberID))
}

func TestTrackRejectsNonContiguousPeriod(t *testing.T) {
	ctx := context.Background()
	env, tracker := overdueEnv(t)

	march, err := period.Parse("2025-03")
	require.NoError(t, err)

	_, err = env.Due.TrackTx(ctx, env.DB, duedomain.TrackInput{
		SubscriberID: tracker.SubscriberID,
		Period:       march,
		Outstanding:  feetest.Amount("1500"),
		DueDate:      feetest.Date(2025, 3, 1),
	}, env.Now())
	assert.ErrorIs(t, err, duedomain.ErrNonContiguousDuePeriods)

	current := env.OpenTracker(t, tracker.SubscriberID)
	assert.Equal(t, []string{"2025-01"}, []string(current.Periods))
	assert.True(t, current.TotalDueAmount.Equal(feetest.Amount("500")))
}

func TestTrackOnlyResyncsTotalForLatestPeriod(t *testing.T) {
	ctx := context.Background()
	env, tracker := overdueEnv(t)

	january, err := period.Parse("2025-01")
	require.NoError(t, err)
	february := january.Next()

	_, err = env.Due.TrackTx(ctx, env.DB, duedomain.TrackInput{
		SubscriberID: tracker.SubscriberID,
		Period:       february,
		Outstanding:  feetest.Amount("1000"),
		DueDate:      feetest.Date(2025, 2, 1),
	}, env.Now())
	require.NoError(t, err)

	updated, err := env.Due.TrackTx(ctx, env.DB, duedomain.TrackInput{
		SubscriberID: tracker.SubscriberID,
		Period:       january,
		Outstanding:  feetest.Amount("100"),
		DueDate:      feetest.Date(2025, 1, 1),
	}, env.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01", "2025-02"}, []string(updated.Periods))
	assert.True(t, updated.TotalDueAmount.Equal(feetest.Amount("1000")))
	assert.Equal(t, feetest.Date(2025, 1, 1), updated.DueSince.UTC())
}
