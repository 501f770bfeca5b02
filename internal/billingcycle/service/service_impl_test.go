package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/seatfee/internal/feetest"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCycleCatchesUpMissedCyclesWithClampedAnchor(t *testing.T) {
	now := time.Date(2025, 2, 10, 0, 5, 0, 0, time.UTC)
	env := feetest.New(t, now)
	sub := env.AddSubscriber(t, "500", 31, feetest.Date(2024, 11, 30))

	result, err := env.BillingCycle.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Generated)
	assert.Empty(t, result.Errors)

	records := env.Records(t, sub.ID)
	require.Len(t, records, 3)

	wantPeriods := []string{"2024-11", "2024-12", "2025-01"}
	wantTotals := []string{"500", "1000", "1500"}
	for i, record := range records {
		assert.Equal(t, wantPeriods[i], record.Period)
		assert.True(t, record.Total().Equal(feetest.Amount(wantTotals[i])), "period %s total %s", record.Period, record.Total())
		assert.Equal(t, ledgerdomain.StatusDue, record.Status)
	}
	assert.Equal(t, feetest.Date(2024, 12, 31), records[1].DueDate.UTC())
	assert.Equal(t, feetest.Date(2025, 1, 31), records[2].DueDate.UTC())

	assert.Equal(t, feetest.Date(2025, 2, 28), env.Subscriber(t, sub.ID).NextBillingDate.UTC())

	tracker := env.OpenTracker(t, sub.ID)
	require.NotNil(t, tracker)
	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01"}, []string(tracker.Periods))
	assert.True(t, tracker.TotalDueAmount.Equal(feetest.Amount("1500")))
	assert.Equal(t, feetest.Date(2024, 11, 30), tracker.DueSince.UTC())
}

func TestRunCycleTwiceWithSameNowGeneratesNothing(t *testing.T) {
	now := feetest.Date(2025, 3, 1)
	env := feetest.New(t, now)
	env.AddSubscriber(t, "750", 1, feetest.Date(2025, 3, 1))
	env.AddSubscriber(t, "300", 1, feetest.Date(2025, 3, 1))

	first, err := env.BillingCycle.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Generated)

	second, err := env.BillingCycle.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Generated)
	assert.Empty(t, second.Errors)

	var count int64
	require.NoError(t, env.DB.Model(&ledgerdomain.LedgerRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestRunCycleAutoAppliesAdvance(t *testing.T) {
	ctx := context.Background()
	now := feetest.Date(2025, 1, 1)
	env := feetest.New(t, now)
	sub := env.AddSubscriber(t, "500", 1, now)

	_, err := env.Advance.AddAdvance(ctx, advanceRequest(sub.ID.String(), "1000"))
	require.NoError(t, err)

	result, err := env.BillingCycle.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Generated)
	assert.Equal(t, 1, result.AdvanceApplied)

	record := env.Record(t, sub.ID, "2025-01")
	require.NotNil(t, record)
	assert.True(t, record.CoveredByAdvance)
	assert.True(t, record.Locked)
	assert.Equal(t, ledgerdomain.StatusPaid, record.Status)
	assert.True(t, record.AdvanceApplied.Equal(feetest.Amount("500")))

	balance := env.Balance(t, sub.ID)
	require.NotNil(t, balance)
	assert.True(t, balance.RemainingAmount.Equal(feetest.Amount("500")))
	assert.True(t, balance.TotalAmount.Equal(feetest.Amount("1000")))

	// The next cycle drains the rest of the pool.
	next := feetest.Date(2025, 2, 1)
	env.Clock.Set(next)
	result, err = env.BillingCycle.RunCycle(ctx, next)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AdvanceApplied)

	february := env.Record(t, sub.ID, "2025-02")
	require.NotNil(t, february)
	assert.True(t, february.DueCarriedForward.IsZero())
	assert.True(t, february.CoveredByAdvance)
	assert.True(t, env.Balance(t, sub.ID).RemainingAmount.IsZero())
	assert.Nil(t, env.OpenTracker(t, sub.ID))
}

func TestRunCycleLeavesRecordPendingWhenAdvanceIsShort(t *testing.T) {
	ctx := context.Background()
	now := feetest.Date(2025, 1, 1)
	env := feetest.New(t, now)
	sub := env.AddSubscriber(t, "500", 1, now)

	_, err := env.Advance.AddAdvance(ctx, advanceRequest(sub.ID.String(), "200"))
	require.NoError(t, err)

	result, err := env.BillingCycle.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.AdvanceApplied)

	record := env.Record(t, sub.ID, "2025-01")
	require.NotNil(t, record)
	assert.Equal(t, ledgerdomain.StatusPending, record.Status)
	assert.False(t, record.CoveredByAdvance)
	assert.True(t, env.Balance(t, sub.ID).RemainingAmount.Equal(feetest.Amount("200")))
}

func TestRunCyclePromotesPendingRecordsPastGrace(t *testing.T) {
	ctx := context.Background()
	now := feetest.Date(2025, 1, 1)
	env := feetest.New(t, now, feetest.WithGraceDays(5))
	sub := env.AddSubscriber(t, "500", 1, now)

	_, err := env.BillingCycle.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, ledgerdomain.StatusPending, env.Record(t, sub.ID, "2025-01").Status)

	inGrace := feetest.Date(2025, 1, 5)
	result, err := env.BillingCycle.RunCycle(ctx, inGrace)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Promoted)

	late := feetest.Date(2025, 1, 10)
	env.Clock.Set(late)
	result, err = env.BillingCycle.RunCycle(ctx, late)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Promoted)
	assert.Equal(t, 0, result.Generated)

	assert.Equal(t, ledgerdomain.StatusDue, env.Record(t, sub.ID, "2025-01").Status)
	tracker := env.OpenTracker(t, sub.ID)
	require.NotNil(t, tracker)
	assert.Equal(t, []string{"2025-01"}, []string(tracker.Periods))
	assert.True(t, tracker.TotalDueAmount.Equal(feetest.Amount("500")))
}

func TestRunCyclePagesThroughSubscribers(t *testing.T) {
	now := feetest.Date(2025, 4, 1)
	env := feetest.New(t, now, feetest.WithBatchSize(1))
	for i := 0; i < 3; i++ {
		env.AddSubscriber(t, "100", 1, now)
	}
	inactive := env.AddSubscriber(t, "100", 1, now)
	require.NoError(t, env.DB.Model(inactive).Update("active", false).Error)

	result, err := env.BillingCycle.RunCycle(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Generated)
	assert.Empty(t, env.Records(t, inactive.ID))
}

func TestRunCycleAfterEnsureAheadOfSchedulerBillsEveryElapsedPeriod(t *testing.T) {
	ctx := context.Background()
	now := feetest.Date(2025, 3, 20)
	env := feetest.New(t, now)
	sub := env.AddSubscriber(t, "500", 15, feetest.Date(2025, 1, 15))

	march, err := env.Ledger.EnsureLedgerRecordExists(ctx, ledgerdomain.EnsureRequest{SubscriberID: sub.ID.String(), Period: "2025-03"})
	require.NoError(t, err)
	assert.True(t, march.Total().Equal(feetest.Amount("1500")))

	records := env.Records(t, sub.ID)
	require.Len(t, records, 3)
	assert.Equal(t, feetest.Date(2025, 1, 15), records[0].DueDate.UTC())

	result, err := env.BillingCycle.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated)
	assert.Equal(t, 3, result.Skipped)
	assert.Empty(t, result.Errors)

	records = env.Records(t, sub.ID)
	require.Len(t, records, 3)
	wantPeriods := []string{"2025-01", "2025-02", "2025-03"}
	wantTotals := []string{"500", "1000", "1500"}
	for i, record := range records {
		assert.Equal(t, wantPeriods[i], record.Period)
		assert.True(t, record.Total().Equal(feetest.Amount(wantTotals[i])), "period %s total %s", record.Period, record.Total())
		if i > 0 {
			assert.True(t, record.DueCarriedForward.Equal(records[i-1].CarriedForwardOut), "period %s carry-forward", record.Period)
		}
	}
	assert.Equal(t, feetest.Date(2025, 4, 15), env.Subscriber(t, sub.ID).NextBillingDate.UTC())

	tracker := env.OpenTracker(t, sub.ID)
	require.NotNil(t, tracker)
	assert.Equal(t, wantPeriods, []string(tracker.Periods))
	assert.True(t, tracker.TotalDueAmount.Equal(feetest.Amount("1500")))
}

func TestRunCycleReportsPeriodBehindLatestRecord(t *testing.T) {
	ctx := context.Background()
	now := feetest.Date(2025, 3, 20)
	env := feetest.New(t, now)
	sub := env.AddSubscriber(t, "500", 15, feetest.Date(2025, 1, 15))

	orphan := ledgerdomain.LedgerRecord{
		ID:                env.GenID.Generate(),
		SubscriberID:      sub.ID,
		Period:            "2025-03",
		BaseFee:           feetest.Amount("500"),
		DueCarriedForward: decimal.Zero,
		PaidAmount:        decimal.Zero,
		AdvanceApplied:    decimal.Zero,
		CarriedForwardOut: decimal.Zero,
		Status:            ledgerdomain.StatusPending,
		DueDate:           feetest.Date(2025, 3, 15),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	inserted, err := env.LedgerRepo.Insert(ctx, env.DB, &orphan)
	require.NoError(t, err)
	require.True(t, inserted)

	result, err := env.BillingCycle.RunCycle(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Generated)
	require.Len(t, result.Errors, 1)

	var itemErr errs.BatchItemError
	for _, e := range result.Errors {
		if e.SubscriberID == sub.ID.String() {
			itemErr = e
		}
	}
	assert.Equal(t, "2025-01", itemErr.Period)
	assert.ErrorIs(t, itemErr.Err, ledgerdomain.ErrPeriodOutOfOrder)

	assert.Len(t, env.Records(t, sub.ID), 1)
	assert.Equal(t, feetest.Date(2025, 1, 15), env.Subscriber(t, sub.ID).NextBillingDate.UTC())
}
