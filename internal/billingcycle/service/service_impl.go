package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	advancedomain "github.com/smallbiznis/seatfee/internal/advance/domain"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	billingcycledomain "github.com/smallbiznis/seatfee/internal/billingcycle/domain"
	"github.com/smallbiznis/seatfee/internal/config"
	"github.com/smallbiznis/seatfee/internal/events"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/seatfee/internal/observability/metrics"
	"github.com/smallbiznis/seatfee/internal/period"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const jobName = "billing_cycle"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	FeeConfig   *config.FeeConfigHolder
	Subscribers subscriberdomain.Directory
	Ledger      ledgerdomain.Repository
	LedgerSvc   ledgerdomain.Service
	AdvanceSvc  advancedomain.Service
	AuditSvc    auditdomain.Service `optional:"true"`
	Bus         *events.Bus         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	feeConfig   *config.FeeConfigHolder
	subscribers subscriberdomain.Directory
	ledger      ledgerdomain.Repository
	ledgerSvc   ledgerdomain.Service
	advanceSvc  advancedomain.Service
	auditSvc    auditdomain.Service
	bus         *events.Bus
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) billingcycledomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("billingcycle.service"),
		feeConfig:   p.FeeConfig,
		subscribers: p.Subscribers,
		ledger:      p.Ledger,
		ledgerSvc:   p.LedgerSvc,
		advanceSvc:  p.AdvanceSvc,
		auditSvc:    p.AuditSvc,
		bus:         p.Bus,
		obsMetrics:  p.ObsMetrics,
	}
}

// subscriberRun is what billing one subscriber produced.
type subscriberRun struct {
	period      string
	generated   int
	skipped     int
	created     []ledgerdomain.LedgerRecord
	applied     []string
	previousBNB time.Time
	nextBNB     time.Time
}

func (s *Service) RunCycle(ctx context.Context, now time.Time) (billingcycledomain.CycleResult, error) {
	cfg := s.feeConfig.Get()
	result := billingcycledomain.CycleResult{Errors: []errs.BatchItemError{}}

	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		subscribers, err := s.subscribers.ListDueForBilling(ctx, s.db, now, afterID, cfg.BatchSize)
		if err != nil {
			return result, err
		}
		if len(subscribers) == 0 {
			break
		}

		for _, subscriber := range subscribers {
			afterID = subscriber.ID

			run, err := s.billSubscriber(ctx, subscriber.ID, now)
			if err != nil {
				s.log.Warn("billing cycle failed for subscriber",
					zap.String("subscriber_id", subscriber.ID.String()),
					zap.String("period", run.period),
					zap.Error(err),
				)
				obsmetrics.Scheduler().IncItemError(jobName, err)
				result.Errors = append(result.Errors, errs.NewBatchItemError(subscriber.ID.String(), run.period, err))
				continue
			}

			result.Generated += run.generated
			result.Skipped += run.skipped
			result.AdvanceApplied += len(run.applied)
			s.afterCommit(ctx, subscriber.ID, run, now)
		}

		if len(subscribers) < cfg.BatchSize {
			break
		}
	}

	promoted, promoteErrs, err := s.promoteOverdue(ctx, now, cfg)
	result.Promoted = promoted
	result.Errors = append(result.Errors, promoteErrs...)

	scheduler := obsmetrics.Scheduler()
	scheduler.AddBatchProcessed(jobName, "generated", result.Generated)
	scheduler.AddBatchProcessed(jobName, "skipped", result.Skipped)
	scheduler.AddBatchProcessed(jobName, "promoted", result.Promoted)
	scheduler.AddBatchProcessed(jobName, "failed", len(result.Errors))

	return result, err
}

// billSubscriber runs the catch-up loop for one subscriber in a single
// transaction holding the subscriber row lock.
func (s *Service) billSubscriber(ctx context.Context, subscriberID snowflake.ID, now time.Time) (subscriberRun, error) {
	var run subscriberRun

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscriber, err := s.subscribers.LockForUpdate(ctx, tx, subscriberID)
		if err != nil {
			return err
		}
		if subscriber == nil {
			return subscriberdomain.ErrSubscriberNotFound
		}
		if !subscriber.Active {
			return nil
		}

		next := subscriber.NextBillingDate.UTC()
		run.previousBNB = next
		for !next.After(now) {
			p := period.Of(next)
			run.period = p.String()

			record, created, err := s.ledgerSvc.GenerateTx(ctx, tx, subscriber, p, next, now, ledgerdomain.SourceBillingCycle)
			switch {
			case errors.Is(err, ledgerdomain.ErrPeriodOutOfOrder):
				// A later period exists without this one: billing would skip
				// a fee, so the subscriber is left for an operator.
				return fmt.Errorf("period %s behind latest record: %w", run.period, err)
			case err != nil:
				return err
			case !created:
				run.skipped++
			default:
				run.generated++
				if record.Status == ledgerdomain.StatusPending &&
					s.advanceSvc.ApplyIfAvailableTx(ctx, tx, subscriber.ID, p, now) {
					run.applied = append(run.applied, record.Period)
					reloaded, err := s.ledger.FindByPeriod(ctx, tx, subscriber.ID, record.Period)
					if err != nil {
						return err
					}
					if reloaded != nil {
						record = reloaded
					}
				}
				run.created = append(run.created, *record)
			}

			next = period.AddMonthClamped(next, subscriber.BillingAnchorDay)
		}
		run.nextBNB = next

		if next.Equal(run.previousBNB) {
			return nil
		}
		return s.subscribers.UpdateNextBillingDate(ctx, tx, subscriber.ID, next, now)
	})
	return run, err
}

func (s *Service) afterCommit(ctx context.Context, subscriberID snowflake.ID, run subscriberRun, now time.Time) {
	s.ledgerSvc.PublishCreated(ctx, ledgerdomain.SourceBillingCycle, run.created)

	for _, key := range run.applied {
		s.obsMetrics.RecordAdvanceApplied(ctx, advancedomain.TriggerBillingCycle)
		s.bus.Publish(ctx, events.Event{Type: events.EventAdvanceChanged, SubscriberID: subscriberID, Period: key, OccurredAt: now})
	}

	if !run.nextBNB.IsZero() && !run.nextBNB.Equal(run.previousBNB) && s.auditSvc != nil {
		err := s.auditSvc.Record(ctx, auditdomain.Entry{
			SubscriberID: subscriberID,
			Action:       auditdomain.ActionBillingDateAdvanced,
			TargetType:   "subscriber",
			TargetID:     subscriberID.String(),
			OldValue:     map[string]any{"next_billing_date": run.previousBNB},
			NewValue:     map[string]any{"next_billing_date": run.nextBNB},
		})
		if err != nil {
			s.log.Warn("audit record failed",
				zap.String("action", auditdomain.ActionBillingDateAdvanced),
				zap.String("subscriber_id", subscriberID.String()),
				zap.Error(err),
			)
		}
	}
}

// promoteOverdue moves PENDING records past their grace window to DUE and
// tracks them.
func (s *Service) promoteOverdue(ctx context.Context, now time.Time, cfg config.FeeConfig) (int, []errs.BatchItemError, error) {
	var (
		promoted int
		itemErrs []errs.BatchItemError
		afterID  snowflake.ID
	)
	dueBefore := now.Add(-cfg.Grace())

	for {
		if err := ctx.Err(); err != nil {
			return promoted, itemErrs, err
		}

		records, err := s.ledger.ListPendingDueBefore(ctx, s.db, dueBefore, afterID, cfg.BatchSize)
		if err != nil {
			return promoted, itemErrs, err
		}
		if len(records) == 0 {
			break
		}

		for _, candidate := range records {
			afterID = candidate.ID

			changed, err := s.promoteOne(ctx, candidate, now)
			if err != nil {
				obsmetrics.Scheduler().IncItemError(jobName, err)
				itemErrs = append(itemErrs, errs.NewBatchItemError(candidate.SubscriberID.String(), candidate.Period, err))
				continue
			}
			if changed {
				promoted++
				s.bus.Publish(ctx, events.Event{Type: events.EventDueChanged, SubscriberID: candidate.SubscriberID, Period: candidate.Period, OccurredAt: now})
			}
		}

		if len(records) < cfg.BatchSize {
			break
		}
	}
	return promoted, itemErrs, nil
}

func (s *Service) promoteOne(ctx context.Context, candidate *ledgerdomain.LedgerRecord, now time.Time) (bool, error) {
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscriber, err := s.subscribers.LockForUpdate(ctx, tx, candidate.SubscriberID)
		if err != nil {
			return err
		}
		if subscriber == nil {
			return subscriberdomain.ErrSubscriberNotFound
		}

		record, err := s.ledger.FindByPeriod(ctx, tx, candidate.SubscriberID, candidate.Period)
		if err != nil {
			return err
		}
		changed, err = s.ledgerSvc.PromoteOverdueTx(ctx, tx, record, now)
		return err
	})
	return changed, err
}
