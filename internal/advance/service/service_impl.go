package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	"github.com/smallbiznis/seatfee/internal/clock"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	"github.com/smallbiznis/seatfee/internal/events"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/seatfee/internal/observability/metrics"
	"github.com/smallbiznis/seatfee/internal/period"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	pkgdb "github.com/smallbiznis/seatfee/pkg/db"
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
	Repo        advancedomain.Repository
	Ledger      ledgerdomain.Repository
	LedgerSvc   ledgerdomain.Service
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
	repo        advancedomain.Repository
	ledger      ledgerdomain.Repository
	ledgerSvc   ledgerdomain.Service
	dueSvc      duedomain.Service
	subscribers subscriberdomain.Directory
	auditSvc    auditdomain.Service
	bus         *events.Bus
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) advancedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("advance.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		ledger:      p.Ledger,
		ledgerSvc:   p.LedgerSvc,
		dueSvc:      p.DueSvc,
		subscribers: p.Subscribers,
		auditSvc:    p.AuditSvc,
		bus:         p.Bus,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) AddAdvance(ctx context.Context, req advancedomain.AddAdvanceRequest) (advancedomain.AdvanceBalance, error) {
	subscriberID, err := parseSubscriberID(req.SubscriberID)
	if err != nil {
		return advancedomain.AdvanceBalance{}, err
	}
	if err := ledgerdomain.ValidateAmount(req.Amount); err != nil {
		return advancedomain.AdvanceBalance{}, err
	}

	now := s.clock.Now()
	var balance *advancedomain.AdvanceBalance
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.lockSubscriber(ctx, tx, subscriberID); err != nil {
			return err
		}
		balance, err = s.AddAdvanceTx(ctx, tx, subscriberID, req.Amount, now)
		return err
	})
	if err != nil {
		return advancedomain.AdvanceBalance{}, err
	}

	s.audit(ctx, auditdomain.Entry{
		SubscriberID: subscriberID,
		Action:       auditdomain.ActionAdvanceAdded,
		TargetType:   "advance_balance",
		TargetID:     balance.ID.String(),
		NewValue: map[string]any{
			"amount":           req.Amount.StringFixed(2),
			"total_amount":     balance.TotalAmount.StringFixed(2),
			"remaining_amount": balance.RemainingAmount.StringFixed(2),
		},
	})
	s.bus.Publish(ctx, events.Event{Type: events.EventAdvanceChanged, SubscriberID: subscriberID, OccurredAt: now})
	return *balance, nil
}

func (s *Service) AddAdvanceTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, amount decimal.Decimal, now time.Time) (*advancedomain.AdvanceBalance, error) {
	amount = ledgerdomain.Round2(amount)
	if err := ledgerdomain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	balance, err := s.repo.FindBalance(ctx, tx, subscriberID)
	if err != nil {
		return nil, err
	}

	if balance == nil {
		balance = &advancedomain.AdvanceBalance{
			ID:              s.genID.Generate(),
			SubscriberID:    subscriberID,
			TotalAmount:     amount,
			RemainingAmount: amount,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err := s.repo.InsertBalance(ctx, tx, balance)
		if err == nil {
			return balance, nil
		}
		if !pkgdb.IsDuplicateKeyErr(err) {
			return nil, err
		}
		balance, err = s.repo.FindBalance(ctx, tx, subscriberID)
		if err != nil {
			return nil, err
		}
		if balance == nil {
			return nil, gorm.ErrRecordNotFound
		}
	}

	balance.TotalAmount = ledgerdomain.Round2(balance.TotalAmount.Add(amount))
	balance.RemainingAmount = ledgerdomain.Round2(balance.RemainingAmount.Add(amount))
	balance.UpdatedAt = now
	if err := s.repo.SaveBalance(ctx, tx, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

func (s *Service) ApplyAdvanceToMonth(ctx context.Context, req advancedomain.ApplyAdvanceRequest) (advancedomain.ApplyAdvanceResponse, error) {
	subscriberID, err := parseSubscriberID(req.SubscriberID)
	if err != nil {
		return advancedomain.ApplyAdvanceResponse{}, err
	}
	p, err := period.Parse(req.Period)
	if err != nil {
		return advancedomain.ApplyAdvanceResponse{}, err
	}

	now := s.clock.Now()
	var (
		ensured ledgerdomain.EnsureResult
		record  *ledgerdomain.LedgerRecord
		balance *advancedomain.AdvanceBalance
		amount  decimal.Decimal
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

		amount = ensured.Record.Residual()
		record, balance, err = s.ApplyToMonthTx(ctx, tx, subscriberID, p, amount, advancedomain.TriggerManual, now)
		return err
	})
	if err != nil {
		return advancedomain.ApplyAdvanceResponse{}, err
	}

	s.ledgerSvc.PublishCreated(ctx, ledgerdomain.SourceAdvance, ensured.Created)
	s.obsMetrics.RecordAdvanceApplied(ctx, advancedomain.TriggerManual)
	s.audit(ctx, auditdomain.Entry{
		SubscriberID: subscriberID,
		Action:       auditdomain.ActionAdvanceApplied,
		TargetType:   "ledger_record",
		TargetID:     record.ID.String(),
		NewValue: map[string]any{
			"period":           record.Period,
			"amount":           amount.StringFixed(2),
			"remaining_amount": balance.RemainingAmount.StringFixed(2),
		},
	})
	s.bus.Publish(ctx, events.Event{Type: events.EventAdvanceChanged, SubscriberID: subscriberID, Period: record.Period, OccurredAt: now})

	return advancedomain.ApplyAdvanceResponse{Record: *record, Balance: *balance}, nil
}

func (s *Service) ApplyToMonthTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, amount decimal.Decimal, trigger string, now time.Time) (*ledgerdomain.LedgerRecord, *advancedomain.AdvanceBalance, error) {
	key := p.String()

	record, err := s.ledger.FindByPeriod(ctx, tx, subscriberID, key)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, ledgerdomain.ErrRecordNotFound
	}
	if record.CoveredByAdvance {
		return nil, nil, advancedomain.ErrPeriodAlreadyCovered
	}
	application, err := s.repo.FindApplication(ctx, tx, subscriberID, key)
	if err != nil {
		return nil, nil, err
	}
	if application != nil {
		return nil, nil, advancedomain.ErrPeriodAlreadyCovered
	}
	if record.Locked {
		return nil, nil, ledgerdomain.ErrRecordLocked
	}
	if record.CarriedForwardOut.IsPositive() {
		return nil, nil, ledgerdomain.ErrPeriodCarriedForward
	}

	outstanding := record.Residual()
	if outstanding.IsZero() {
		return nil, nil, advancedomain.ErrNothingOutstanding
	}
	amount = ledgerdomain.Round2(amount)
	if err := ledgerdomain.ValidateAmount(amount); err != nil {
		return nil, nil, err
	}
	if !amount.Equal(outstanding) {
		return nil, nil, advancedomain.ErrAdvanceAmountMismatch
	}

	balance, err := s.repo.FindBalance(ctx, tx, subscriberID)
	if err != nil {
		return nil, nil, err
	}
	if balance == nil || amount.GreaterThan(balance.RemainingAmount) {
		return nil, nil, advancedomain.ErrInsufficientAdvance
	}

	balance.RemainingAmount = ledgerdomain.Round2(balance.RemainingAmount.Sub(amount))
	balance.UpdatedAt = now
	if err := s.repo.SaveBalance(ctx, tx, balance); err != nil {
		return nil, nil, err
	}

	err = s.repo.InsertApplication(ctx, tx, &advancedomain.AdvanceApplication{
		ID:           s.genID.Generate(),
		SubscriberID: subscriberID,
		Period:       key,
		Amount:       amount,
		Trigger:      trigger,
		CreatedAt:    now,
	})
	if pkgdb.IsDuplicateKeyErr(err) {
		return nil, nil, advancedomain.ErrPeriodAlreadyCovered
	}
	if err != nil {
		return nil, nil, err
	}

	record.AdvanceApplied = ledgerdomain.Round2(record.AdvanceApplied.Add(amount))
	record.CoveredByAdvance = true
	record.MarkPaid(now)
	if err := s.ledger.Update(ctx, tx, record); err != nil {
		return nil, nil, err
	}

	if _, err := s.dueSvc.SettleTx(ctx, tx, subscriberID, p, now); err != nil {
		return nil, nil, err
	}
	return record, balance, nil
}

func (s *Service) ApplyIfAvailableTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, now time.Time) bool {
	balance, err := s.repo.FindBalance(ctx, tx, subscriberID)
	if err != nil {
		s.log.Warn("advance lookup failed", zap.String("subscriber_id", subscriberID.String()), zap.Error(err))
		return false
	}
	if balance == nil || !balance.RemainingAmount.IsPositive() {
		return false
	}

	err = tx.Transaction(func(savepoint *gorm.DB) error {
		record, err := s.ledger.FindByPeriod(ctx, savepoint, subscriberID, p.String())
		if err != nil {
			return err
		}
		if record == nil {
			return ledgerdomain.ErrRecordNotFound
		}
		_, _, err = s.ApplyToMonthTx(ctx, savepoint, subscriberID, p, record.Residual(), advancedomain.TriggerBillingCycle, now)
		return err
	})
	if err != nil {
		level := s.log.Warn
		if errors.Is(err, advancedomain.ErrInsufficientAdvance) || errors.Is(err, advancedomain.ErrNothingOutstanding) {
			level = s.log.Debug
		}
		level("advance not applied",
			zap.String("subscriber_id", subscriberID.String()),
			zap.String("period", p.String()),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (s *Service) GetBalance(ctx context.Context, subscriberID snowflake.ID) (*advancedomain.AdvanceBalance, error) {
	return s.repo.FindBalance(ctx, s.db, subscriberID)
}

func (s *Service) lockSubscriber(ctx context.Context, tx *gorm.DB, id snowflake.ID) error {
	subscriber, err := s.subscribers.LockForUpdate(ctx, tx, id)
	if err != nil {
		return err
	}
	if subscriber == nil {
		return subscriberdomain.ErrSubscriberNotFound
	}
	return nil
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

func parseSubscriberID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, subscriberdomain.ErrInvalidSubscriber
	}
	return id, nil
}
