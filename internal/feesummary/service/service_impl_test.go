package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/seatfee/internal/feetest"
	feesummarydomain "github.com/smallbiznis/seatfee/internal/feesummary/domain"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/seatfee/internal/payment/domain"
	"github.com/smallbiznis/seatfee/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeSummaryReflectsLedgerAndDue(t *testing.T) {
	ctx := context.Background()
	env := feetest.New(t, feetest.Date(2025, 2, 10))
	sub := env.AddSubscriber(t, "500", 1, feetest.Date(2025, 3, 1))
	id := sub.ID.String()

	for _, p := range []string{"2025-01", "2025-02"} {
		_, err := env.Ledger.EnsureLedgerRecordExists(ctx, ledgerdomain.EnsureRequest{SubscriberID: id, Period: p})
		require.NoError(t, err)
	}

	summary, err := env.Summary.GetFeeSummary(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "INR", summary.Currency)
	assert.True(t, summary.TotalOutstanding.Equal(feetest.Amount("1000")))
	require.Len(t, summary.Records, 2)
	assert.Equal(t, "2025-02", summary.Records[0].Period)
	assert.True(t, summary.Records[1].Residual.IsZero())
	assert.Empty(t, summary.Payments)
	assert.True(t, summary.Advance.RemainingAmount.IsZero())

	require.NotNil(t, summary.Due)
	assert.Equal(t, []string{"2025-01", "2025-02"}, summary.Due.Periods)
	assert.Equal(t, 40, summary.Due.DaysOverdue)
	assert.Equal(t, 5, summary.Due.EscalationLevel)
}

func TestFeeSummaryCachedUntilEventOrExpiry(t *testing.T) {
	ctx := context.Background()
	env := feetest.New(t, feetest.Date(2025, 1, 2))
	sub := env.AddSubscriber(t, "500", 1, feetest.Date(2025, 1, 1))
	id := sub.ID.String()

	_, err := env.Ledger.EnsureLedgerRecordExists(ctx, ledgerdomain.EnsureRequest{SubscriberID: id, Period: "2025-01"})
	require.NoError(t, err)

	first, err := env.Summary.GetFeeSummary(ctx, id)
	require.NoError(t, err)
	assert.True(t, first.TotalOutstanding.Equal(feetest.Amount("500")))

	// A write that skips the services is not seen until the entry expires.
	require.NoError(t, env.DB.Model(&ledgerdomain.LedgerRecord{}).
		Where("subscriber_id = ?", sub.ID).
		Update("paid_amount", feetest.Amount("100")).Error)

	cached, err := env.Summary.GetFeeSummary(ctx, id)
	require.NoError(t, err)
	assert.True(t, cached.TotalOutstanding.Equal(feetest.Amount("500")))
	assert.Equal(t, first.GeneratedAt.UTC(), cached.GeneratedAt.UTC())

	env.Clock.Advance(31 * time.Second)
	expired, err := env.Summary.GetFeeSummary(ctx, id)
	require.NoError(t, err)
	assert.True(t, expired.TotalOutstanding.Equal(feetest.Amount("400")))

	_, err = env.Payment.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
		SubscriberID: id,
		Period:       "2025-01",
		Amount:       feetest.Amount("150"),
		Method:       paymentdomain.MethodCheque,
	})
	require.NoError(t, err)

	fresh, err := env.Summary.GetFeeSummary(ctx, id)
	require.NoError(t, err)
	assert.True(t, fresh.TotalOutstanding.Equal(feetest.Amount("250")))
	require.Len(t, fresh.Payments, 1)
	assert.Equal(t, paymentdomain.MethodCheque, fresh.Payments[0].Method)
}

func TestListRecordsPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	env := feetest.New(t, feetest.Date(2025, 1, 1))
	sub := env.AddSubscriber(t, "300", 1, feetest.Date(2025, 1, 1))
	id := sub.ID.String()

	for month := time.January; month <= time.May; month++ {
		env.Clock.Set(feetest.Date(2025, month, 1))
		_, err := env.BillingCycle.RunCycle(ctx, env.Now())
		require.NoError(t, err)
	}
	require.Len(t, env.Records(t, sub.ID), 5)

	var periods []string
	token := ""
	for pages := 0; pages < 5; pages++ {
		resp, err := env.Summary.ListRecords(ctx, feesummarydomain.ListRecordsRequest{
			Pagination:   pagination.Pagination{PageToken: token, PageSize: 2},
			SubscriberID: id,
		})
		require.NoError(t, err)
		for _, r := range resp.Records {
			periods = append(periods, r.Period)
		}
		if !resp.PageInfo.HasMore {
			break
		}
		token = resp.PageInfo.NextPageToken
	}
	assert.Equal(t, []string{"2025-05", "2025-04", "2025-03", "2025-02", "2025-01"}, periods)

	_, err := env.Summary.ListRecords(ctx, feesummarydomain.ListRecordsRequest{
		Pagination:   pagination.Pagination{PageToken: "not-a-token", PageSize: 2},
		SubscriberID: id,
	})
	assert.ErrorIs(t, err, feesummarydomain.ErrInvalidPageToken)
}
