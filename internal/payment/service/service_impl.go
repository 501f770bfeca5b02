package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	"github.com/smallbiznis/seatfee/internal/clock"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	"github.com/smallbiznis/seatfee/internal/events"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/seatfee/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/seatfee/internal/payment/domain"
	"github.com/smallbiznis/seatfee/internal/period"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	LedgerSvc   ledgerdomain.Service
	Ledger      ledgerdomain.Repository
	AdvanceSvc  advancedomain.Service
	DueSvc      duedomain.Service
	Subscribers subscriberdomain.Directory
	AuditSvc    auditdomain.Service `optional:"true"`
	Bus         *events.Bus         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        paymentdomain.Repository
	ledgerSvc   ledgerdomain.Service
	ledger      ledgerdomain.Repository
	advanceSvc  advancedomain.Service
	dueSvc      duedomain.Service
	subscribers subscriberdomain.Directory
	auditSvc    auditdomain.Service
	bus         *events.Bus
	obsMetrics  *obsmetrics.Metrics
	validate    *validator.Validate
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		ledgerSvc:   p.LedgerSvc,
		ledger:      p.Ledger,
		advanceSvc:  p.AdvanceSvc,
		dueSvc:      p.DueSvc,
		subscribers: p.Subscribers,
		auditSvc:    p.AuditSvc,
		bus:         p.Bus,
		obsMetrics:  p.ObsMetrics,
		validate:    validator.New(),
	}
}

func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.RecordPaymentResponse, error) {
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	if err := s.validate.Struct(req); err != nil {
		return paymentdomain.RecordPaymentResponse{}, requestError(err)
	}

	subscriberID, err := snowflake.ParseString(strings.TrimSpace(req.SubscriberID))
	if err != nil || subscriberID == 0 {
		return paymentdomain.RecordPaymentResponse{}, subscriberdomain.ErrInvalidSubscriber
	}
	p, err := period.Parse(req.Period)
	if err != nil {
		return paymentdomain.RecordPaymentResponse{}, err
	}
	if err := ledgerdomain.ValidateAmount(req.Amount); err != nil {
		return paymentdomain.RecordPaymentResponse{}, err
	}
	amount := ledgerdomain.Round2(req.Amount)

	now := s.clock.Now()
	var (
		ensured ledgerdomain.EnsureResult
		payment paymentdomain.Payment
		settled duedomain.SettleResult
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscriber, err := s.subscribers.LockForUpdate(ctx, tx, subscriberID)
		if err != nil {
			return err
		}
		if subscriber == nil {
			return subscriberdomain.ErrSubscriberNotFound
		}

		ensured, err = s.ledgerSvc.EnsureTx(ctx, tx, subscriber, p, now)
		if err != nil {
			return err
		}
		record := ensured.Record

		switch {
		case record.Locked:
			return ledgerdomain.ErrRecordLocked
		case record.CoveredByAdvance:
			return ledgerdomain.ErrCoveredByAdvance
		case record.CarriedForwardOut.IsPositive():
			return ledgerdomain.ErrPeriodCarriedForward
		}

		payment = paymentdomain.Payment{
			ID:             s.genID.Generate(),
			SubscriberID:   subscriberID,
			LedgerRecordID: record.ID,
			Period:         record.Period,
			Amount:         amount,
			Method:         req.Method,
			CreatedAt:      now,
		}

		outstanding := record.Residual()
		if amount.GreaterThanOrEqual(outstanding) {
			surplus := ledgerdomain.Round2(amount.Sub(outstanding))
			record.PaidAmount = ledgerdomain.Round2(record.PaidAmount.Add(outstanding))
			record.MarkPaid(now)
			if err := s.ledger.Update(ctx, tx, record); err != nil {
				return err
			}
			if surplus.IsPositive() {
				if _, err := s.advanceSvc.AddAdvanceTx(ctx, tx, subscriberID, surplus, now); err != nil {
					return err
				}
			}
			settled, err = s.dueSvc.SettleTx(ctx, tx, subscriberID, p, now)
			if err != nil {
				return err
			}

			payment.AppliedAmount = outstanding
			payment.SurplusAmount = surplus
			payment.ResidualDue = decimal.Zero
			payment.Outcome = paymentdomain.OutcomeSettled
		} else {
			record.PaidAmount = ledgerdomain.Round2(record.PaidAmount.Add(amount))
			record.Status = ledgerdomain.StatusDue
			record.UpdatedAt = now
			if err := s.ledger.Update(ctx, tx, record); err != nil {
				return err
			}
			if _, err := s.dueSvc.TrackTx(ctx, tx, duedomain.TrackInput{
				SubscriberID: subscriberID,
				Period:       p,
				Outstanding:  record.Outstanding(),
				DueDate:      record.DueDate,
			}, now); err != nil {
				return err
			}

			payment.AppliedAmount = amount
			payment.SurplusAmount = decimal.Zero
			payment.ResidualDue = record.Residual()
			payment.Outcome = paymentdomain.OutcomePartial
		}

		return s.repo.Insert(ctx, tx, &payment)
	})
	if err != nil {
		s.log.Info("payment rejected",
			zap.String("subscriber_id", req.SubscriberID),
			zap.String("period", req.Period),
			zap.Error(err),
		)
		return paymentdomain.RecordPaymentResponse{}, err
	}

	s.afterCommit(ctx, ensured, payment, settled, now)

	return paymentdomain.RecordPaymentResponse{
		Record:      *ensured.Record,
		ResidualDue: payment.ResidualDue,
		Payment:     payment,
	}, nil
}

func (s *Service) afterCommit(ctx context.Context, ensured ledgerdomain.EnsureResult, payment paymentdomain.Payment, settled duedomain.SettleResult, now time.Time) {
	s.ledgerSvc.PublishCreated(ctx, ledgerdomain.SourcePayment, ensured.Created)
	s.obsMetrics.RecordPayment(ctx, payment.Method, payment.Outcome)

	s.audit(ctx, auditdomain.Entry{
		SubscriberID: payment.SubscriberID,
		Action:       auditdomain.ActionPaymentRecorded,
		TargetType:   "ledger_record",
		TargetID:     payment.LedgerRecordID.String(),
		NewValue: map[string]any{
			"payment_id":   payment.ID.String(),
			"period":       payment.Period,
			"amount":       payment.Amount.StringFixed(2),
			"applied":      payment.AppliedAmount.StringFixed(2),
			"surplus":      payment.SurplusAmount.StringFixed(2),
			"residual_due": payment.ResidualDue.StringFixed(2),
			"method":       payment.Method,
			"status":       ensured.Record.Status,
		},
	})
	if len(settled.Settled) > 0 || settled.Resolved {
		s.audit(ctx, auditdomain.Entry{
			SubscriberID: payment.SubscriberID,
			Action:       auditdomain.ActionDueSettled,
			TargetType:   "due_tracker",
			TargetID:     trackerID(settled.Tracker),
			NewValue: map[string]any{
				"settled_periods": settled.Settled,
				"resolved":        settled.Resolved,
			},
		})
	}

	s.bus.Publish(ctx, events.Event{Type: events.EventPaymentRecorded, SubscriberID: payment.SubscriberID, Period: payment.Period, OccurredAt: now})
	if payment.SurplusAmount.IsPositive() {
		s.bus.Publish(ctx, events.Event{Type: events.EventAdvanceChanged, SubscriberID: payment.SubscriberID, Period: payment.Period, OccurredAt: now})
	}
}

func (s *Service) audit(ctx context.Context, entry auditdomain.Entry) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(ctx, entry); err != nil {
		s.log.Warn("audit record failed",
			zap.String("action", entry.Action),
			zap.String("subscriber_id", entry.SubscriberID.String()),
			zap.Error(err),
		)
	}
}

func requestError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		for _, fe := range fieldErrs {
			switch fe.Field() {
			case "Method":
				return paymentdomain.ErrInvalidMethod
			case "Period":
				return period.ErrInvalidPeriod
			case "SubscriberID":
				return subscriberdomain.ErrInvalidSubscriber
			}
		}
	}
	return paymentdomain.ErrInvalidRequest
}

func trackerID(tracker *duedomain.DueTracker) string {
	if tracker == nil {
		return ""
	}
	return tracker.ID.String()
}
