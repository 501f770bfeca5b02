package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/pkg/db/pagination"
)

// Audit actions written by the fee services.
const (
	ActionLedgerRecordCreated = "ledger.record_created"
	ActionLedgerMarkedDue     = "ledger.marked_due"
	ActionPaymentRecorded     = "payment.recorded"
	ActionAdvanceAdded        = "advance.added"
	ActionAdvanceApplied      = "advance.applied"
	ActionDueSettled          = "due.settled"
	ActionDueReminderSent     = "due.reminder_sent"
	ActionBillingDateAdvanced = "subscriber.next_billing_date_advanced"
)

// Entry is one audit event. OldValue and NewValue are stored as JSON.
type Entry struct {
	SubscriberID snowflake.ID
	Action       string
	TargetType   string
	TargetID     string
	OldValue     any
	NewValue     any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	SubscriberID string
	Action       string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// Record appends an entry. Failures are logged and returned; callers
	// log them and carry on since the audited change already committed.
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
)
