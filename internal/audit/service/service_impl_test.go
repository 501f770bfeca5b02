package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	"github.com/smallbiznis/seatfee/internal/feetest"
	obscontext "github.com/smallbiznis/seatfee/internal/observability/context"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	"github.com/smallbiznis/seatfee/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordCapturesActorAndRequest(t *testing.T) {
	env := feetest.New(t, feetest.Date(2025, time.March, 1))
	sub := env.AddSubscriber(t, "500", 1, feetest.Date(2025, time.April, 1))

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "operator", "ops-7")

	err := env.Audit.Record(ctx, auditdomain.Entry{
		SubscriberID: sub.ID,
		Action:       auditdomain.ActionAdvanceAdded,
		TargetType:   "advance_balance",
		TargetID:     "42",
		NewValue:     map[string]any{"amount": "100.00"},
	})
	require.NoError(t, err)

	resp, err := env.Audit.List(context.Background(), auditdomain.ListAuditLogRequest{SubscriberID: sub.ID.String()})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "operator", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "ops-7", *entry.ActorID)
	require.NotNil(t, entry.RequestID)
	assert.Equal(t, "req-1", *entry.RequestID)
	assert.Nil(t, entry.OldValue)

	var newValue map[string]string
	require.NoError(t, json.Unmarshal(entry.NewValue, &newValue))
	assert.Equal(t, "100.00", newValue["amount"])
}

func TestRecordDefaultsToSystemActor(t *testing.T) {
	env := feetest.New(t, feetest.Date(2025, time.March, 1))

	require.NoError(t, env.Audit.Record(context.Background(), auditdomain.Entry{Action: auditdomain.ActionDueReminderSent}))

	resp, err := env.Audit.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorType)
	assert.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
	assert.Nil(t, resp.AuditLogs[0].SubscriberID)
}

func TestRecordRejectsBlankAction(t *testing.T) {
	env := feetest.New(t, feetest.Date(2025, time.March, 1))

	err := env.Audit.Record(context.Background(), auditdomain.Entry{Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPagesNewestFirst(t *testing.T) {
	env := feetest.New(t, feetest.Date(2025, time.March, 1))
	sub := env.AddSubscriber(t, "500", 1, feetest.Date(2025, time.April, 1))
	other := env.AddSubscriber(t, "300", 2, feetest.Date(2025, time.April, 2))

	for _, action := range []string{
		auditdomain.ActionLedgerRecordCreated,
		auditdomain.ActionPaymentRecorded,
		auditdomain.ActionAdvanceAdded,
	} {
		require.NoError(t, env.Audit.Record(context.Background(), auditdomain.Entry{SubscriberID: sub.ID, Action: action}))
	}
	require.NoError(t, env.Audit.Record(context.Background(), auditdomain.Entry{SubscriberID: other.ID, Action: auditdomain.ActionPaymentRecorded}))

	first, err := env.Audit.List(context.Background(), auditdomain.ListAuditLogRequest{
		Pagination:   pagination.Pagination{PageSize: 2},
		SubscriberID: sub.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, auditdomain.ActionAdvanceAdded, first.AuditLogs[0].Action)
	assert.Equal(t, auditdomain.ActionPaymentRecorded, first.AuditLogs[1].Action)

	second, err := env.Audit.List(context.Background(), auditdomain.ListAuditLogRequest{
		Pagination:   pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
		SubscriberID: sub.ID.String(),
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, auditdomain.ActionLedgerRecordCreated, second.AuditLogs[0].Action)

	filtered, err := env.Audit.List(context.Background(), auditdomain.ListAuditLogRequest{Action: auditdomain.ActionPaymentRecorded})
	require.NoError(t, err)
	assert.Len(t, filtered.AuditLogs, 2)
}

func TestListRejectsBadInput(t *testing.T) {
	env := feetest.New(t, feetest.Date(2025, time.March, 1))

	_, err := env.Audit.List(context.Background(), auditdomain.ListAuditLogRequest{SubscriberID: "not-a-number"})
	assert.ErrorIs(t, err, subscriberdomain.ErrInvalidSubscriber)

	_, err = env.Audit.List(context.Background(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "%%%"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
