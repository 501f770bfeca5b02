package domain

import (
	"time"

	"github.com/shopspring/decimal"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/seatfee/internal/payment/domain"
	"github.com/smallbiznis/seatfee/pkg/db/pagination"
)

// RecordView is a ledger record with its derived amounts spelled out.
type RecordView struct {
	Period            string              `json:"period"`
	Status            ledgerdomain.Status `json:"status"`
	BaseFee           decimal.Decimal     `json:"base_fee"`
	DueCarriedForward decimal.Decimal     `json:"due_carried_forward"`
	Total             decimal.Decimal     `json:"total"`
	PaidAmount        decimal.Decimal     `json:"paid_amount"`
	AdvanceApplied    decimal.Decimal     `json:"advance_applied"`
	CarriedForwardOut decimal.Decimal     `json:"carried_forward_out"`
	Residual          decimal.Decimal     `json:"residual"`
	CoveredByAdvance  bool                `json:"covered_by_advance"`
	Locked            bool                `json:"locked"`
	DueDate           time.Time           `json:"due_date"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
}

func NewRecordView(r *ledgerdomain.LedgerRecord) RecordView {
	return RecordView{
		Period:            r.Period,
		Status:            r.Status,
		BaseFee:           r.BaseFee,
		DueCarriedForward: r.DueCarriedForward,
		Total:             r.Total(),
		PaidAmount:        r.PaidAmount,
		AdvanceApplied:    r.AdvanceApplied,
		CarriedForwardOut: r.CarriedForwardOut,
		Residual:          r.Residual(),
		CoveredByAdvance:  r.CoveredByAdvance,
		Locked:            r.Locked,
		DueDate:           r.DueDate,
		PaidAt:            r.PaidAt,
	}
}

// DueView reports the open tracker. DaysOverdue and EscalationLevel are
// computed at read time rather than taken from the last sweep.
type DueView struct {
	Periods            []string        `json:"periods"`
	TotalDueAmount     decimal.Decimal `json:"total_due_amount"`
	DueSince           time.Time       `json:"due_since"`
	DaysOverdue        int             `json:"days_overdue"`
	EscalationLevel    int             `json:"escalation_level"`
	ReminderCount      int             `json:"reminder_count"`
	LastReminderSentAt *time.Time      `json:"last_reminder_sent_at,omitempty"`
	NextReminderDue    *time.Time      `json:"next_reminder_due,omitempty"`
}

func NewDueView(t *duedomain.DueTracker, now time.Time) *DueView {
	if t == nil {
		return nil
	}
	return &DueView{
		Periods:            append([]string(nil), t.Periods...),
		TotalDueAmount:     t.TotalDueAmount,
		DueSince:           t.DueSince,
		DaysOverdue:        t.CurrentDaysOverdue(now),
		EscalationLevel:    t.CurrentTier(now),
		ReminderCount:      t.ReminderCount,
		LastReminderSentAt: t.LastReminderSentAt,
		NextReminderDue:    t.NextReminderDue,
	}
}

type AdvanceView struct {
	TotalAmount     decimal.Decimal                    `json:"total_amount"`
	RemainingAmount decimal.Decimal                    `json:"remaining_amount"`
	Applications    []advancedomain.AdvanceApplication `json:"applications"`
}

type FeeSummary struct {
	SubscriberID     string                  `json:"subscriber_id"`
	Currency         string                  `json:"currency"`
	BaseFee          decimal.Decimal         `json:"base_fee"`
	NextBillingDate  time.Time               `json:"next_billing_date"`
	TotalOutstanding decimal.Decimal         `json:"total_outstanding"`
	Records          []RecordView            `json:"records"`
	Payments         []paymentdomain.Payment `json:"payments"`
	Advance          AdvanceView             `json:"advance"`
	Due              *DueView                `json:"due,omitempty"`
	GeneratedAt      time.Time               `json:"generated_at"`
}

type ListRecordsRequest struct {
	pagination.Pagination
	SubscriberID string
}

type ListRecordsResponse struct {
	PageInfo pagination.PageInfo `json:"page_info"`
	Records  []RecordView        `json:"records"`
}
