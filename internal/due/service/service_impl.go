package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	"github.com/smallbiznis/seatfee/internal/config"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	"github.com/smallbiznis/seatfee/internal/events"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	"github.com/smallbiznis/seatfee/internal/notify"
	obsmetrics "github.com/smallbiznis/seatfee/internal/observability/metrics"
	"github.com/smallbiznis/seatfee/internal/period"
	subscriberdomain "github.com/smallbiznis/seatfee/internal/subscriber/domain"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const sweepJobName = "escalation_sweep"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	FeeConfig   *config.FeeConfigHolder
	Repo        duedomain.Repository
	Ledger      ledgerdomain.Repository
	Subscribers subscriberdomain.Directory
	Notifier    notify.Notifier
	AuditSvc    auditdomain.Service `optional:"true"`
	Bus         *events.Bus         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	feeConfig   *config.FeeConfigHolder
	repo        duedomain.Repository
	ledger      ledgerdomain.Repository
	subscribers subscriberdomain.Directory
	notifier    notify.Notifier
	auditSvc    auditdomain.Service
	bus         *events.Bus
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) duedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("due.service"),
		genID:       p.GenID,
		feeConfig:   p.FeeConfig,
		repo:        p.Repo,
		ledger:      p.Ledger,
		subscribers: p.Subscribers,
		notifier:    p.Notifier,
		auditSvc:    p.AuditSvc,
		bus:         p.Bus,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) FindOpen(ctx context.Context, subscriberID snowflake.ID) (*duedomain.DueTracker, error) {
	return s.repo.FindOpen(ctx, s.db, subscriberID)
}

func (s *Service) FindOpenTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID) (*duedomain.DueTracker, error) {
	return s.repo.FindOpen(ctx, tx, subscriberID)
}

func (s *Service) TrackTx(ctx context.Context, tx *gorm.DB, in duedomain.TrackInput, now time.Time) (*duedomain.DueTracker, error) {
	key := in.Period.String()
	outstanding := ledgerdomain.Round2(in.Outstanding)

	tracker, err := s.repo.FindOpen(ctx, tx, in.SubscriberID)
	if err != nil {
		return nil, err
	}

	if tracker == nil {
		next := now
		if in.ReminderAt != nil && !in.ReminderAt.IsZero() {
			next = in.ReminderAt.UTC()
		}
		tracker = &duedomain.DueTracker{
			ID:              s.genID.Generate(),
			SubscriberID:    in.SubscriberID,
			Periods:         datatypes.JSONSlice[string]{key},
			TotalDueAmount:  outstanding,
			DueSince:        in.DueDate.UTC(),
			NextReminderDue: &next,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.Insert(ctx, tx, tracker); err != nil {
			return nil, err
		}
		return tracker, nil
	}

	if len(tracker.Periods) == 0 {
		tracker.Periods = datatypes.JSONSlice[string]{key}
		tracker.DueSince = in.DueDate.UTC()
	} else if !tracker.Contains(key) {
		last, _ := tracker.LastPeriod()
		if last.Next() != in.Period {
			return nil, duedomain.ErrNonContiguousDuePeriods
		}
		tracker.Periods = append(tracker.Periods, key)
	}

	if last, ok := tracker.LastPeriod(); ok && last == in.Period {
		tracker.TotalDueAmount = outstanding
	}
	if in.ReminderAt != nil && !in.ReminderAt.IsZero() {
		if at := in.ReminderAt.UTC(); tracker.NextReminderDue == nil || at.Before(*tracker.NextReminderDue) {
			tracker.NextReminderDue = &at
		}
	}
	tracker.UpdatedAt = now

	if err := s.repo.Save(ctx, tx, tracker); err != nil {
		return nil, err
	}
	return tracker, nil
}

func (s *Service) SettleTx(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, now time.Time) (duedomain.SettleResult, error) {
	tracker, err := s.repo.FindOpen(ctx, tx, subscriberID)
	if err != nil {
		return duedomain.SettleResult{}, err
	}

	chain, err := s.chainBefore(ctx, tx, subscriberID, p, tracker)
	if err != nil {
		return duedomain.SettleResult{}, err
	}

	result := duedomain.SettleResult{Tracker: tracker}
	for _, record := range chain {
		record.CarriedForwardOut = ledgerdomain.Round2(record.CarriedForwardOut.Add(record.Residual()))
		record.MarkPaid(now)
		if err := s.ledger.Update(ctx, tx, record); err != nil {
			return duedomain.SettleResult{}, err
		}
		result.Settled = append(result.Settled, record.Period)
	}

	if tracker == nil {
		return result, nil
	}

	tracker.RemoveThrough(p)
	if len(tracker.Periods) == 0 {
		tracker.Resolve(now)
		result.Resolved = true
	} else if err := s.resync(ctx, tx, tracker, now); err != nil {
		return duedomain.SettleResult{}, err
	}

	if err := s.repo.Save(ctx, tx, tracker); err != nil {
		return duedomain.SettleResult{}, err
	}
	return result, nil
}

// chainBefore collects the unpaid records whose balance flows into p: the
// tracked periods before p plus any predecessor that carried its balance
// forward. Records come back oldest first.
func (s *Service) chainBefore(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, tracker *duedomain.DueTracker) ([]*ledgerdomain.LedgerRecord, error) {
	keys := map[string]struct{}{}
	if tracker != nil {
		for _, key := range tracker.KeysBefore(p) {
			keys[key.String()] = struct{}{}
		}
	}

	for cur := p.Prev(); ; cur = cur.Prev() {
		record, err := s.ledger.FindByPeriod(ctx, tx, subscriberID, cur.String())
		if err != nil {
			return nil, err
		}
		if record == nil || record.Locked || record.Status == ledgerdomain.StatusPaid {
			break
		}
		_, tracked := keys[record.Period]
		if !tracked && !record.CarriedForwardOut.IsPositive() {
			break
		}
		keys[record.Period] = struct{}{}
	}

	// Period keys sort chronologically as strings.
	ordered := lo.Keys(keys)
	slices.Sort(ordered)

	chain := make([]*ledgerdomain.LedgerRecord, 0, len(ordered))
	for _, key := range ordered {
		record, err := s.ledger.FindByPeriod(ctx, tx, subscriberID, key)
		if err != nil {
			return nil, err
		}
		if record == nil || record.Locked {
			continue
		}
		chain = append(chain, record)
	}
	return chain, nil
}

// resync points the tracker at its remaining periods: the total follows the
// latest one, DueSince the earliest.
func (s *Service) resync(ctx context.Context, tx *gorm.DB, tracker *duedomain.DueTracker, now time.Time) error {
	first, _ := tracker.FirstPeriod()
	last, _ := tracker.LastPeriod()

	latest, err := s.ledger.FindByPeriod(ctx, tx, tracker.SubscriberID, last.String())
	if err != nil {
		return err
	}
	if latest != nil {
		tracker.TotalDueAmount = latest.Outstanding()
	}

	earliest, err := s.ledger.FindByPeriod(ctx, tx, tracker.SubscriberID, first.String())
	if err != nil {
		return err
	}
	if earliest != nil {
		tracker.DueSince = earliest.DueDate
	}
	tracker.UpdatedAt = now
	return nil
}

func (s *Service) RunEscalationSweep(ctx context.Context, now time.Time) (duedomain.SweepResult, error) {
	cfg := s.feeConfig.Get()
	result := duedomain.SweepResult{Errors: []errs.BatchItemError{}}

	var afterID snowflake.ID
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		trackers, err := s.repo.ListReminderDue(ctx, s.db, now, afterID, cfg.BatchSize)
		if err != nil {
			return result, err
		}
		if len(trackers) == 0 {
			break
		}

		for _, tracker := range trackers {
			afterID = tracker.ID
			outcome, err := s.remind(ctx, tracker, now, cfg)
			if err != nil {
				obsmetrics.Scheduler().IncItemError(sweepJobName, err)
				result.Errors = append(result.Errors, errs.NewBatchItemError(
					tracker.SubscriberID.String(),
					lastKey(tracker),
					err,
				))
				continue
			}
			switch outcome {
			case reminderSkipped:
				result.Skipped++
				continue
			case reminderEscalated:
				result.Escalated++
			}
			result.Processed++
		}

		if len(trackers) < cfg.BatchSize {
			break
		}
	}

	scheduler := obsmetrics.Scheduler()
	scheduler.AddBatchProcessed(sweepJobName, "processed", result.Processed)
	scheduler.AddBatchProcessed(sweepJobName, "escalated", result.Escalated)
	scheduler.AddBatchProcessed(sweepJobName, "skipped", result.Skipped)
	scheduler.AddBatchProcessed(sweepJobName, "failed", len(result.Errors))

	return result, nil
}

type reminderOutcome int

const (
	reminderSkipped reminderOutcome = iota
	reminderSent
	reminderEscalated
)

// remind sends one reminder and, only when delivery succeeded, advances the
// tracker's reminder schedule. The tracker is re-read under lock first: one
// resolved or rescheduled since it was listed is skipped, and the locks are
// held through delivery so a payment cannot resolve it mid-send.
func (s *Service) remind(ctx context.Context, candidate *duedomain.DueTracker, now time.Time, cfg config.FeeConfig) (reminderOutcome, error) {
	outcome := reminderSkipped
	var updated *duedomain.DueTracker

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscriber, err := s.subscribers.LockForUpdate(ctx, tx, candidate.SubscriberID)
		if err != nil {
			return err
		}
		if subscriber == nil {
			return subscriberdomain.ErrSubscriberNotFound
		}

		current, err := s.repo.LockByID(ctx, tx, candidate.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Resolved || current.NextReminderDue == nil || current.NextReminderDue.After(now) {
			return nil
		}

		days := current.CurrentDaysOverdue(now)
		tier := duedomain.TierFor(days)

		err = s.notifier.Send(ctx, reminderFor(current, days, tier, cfg.Currency))
		s.obsMetrics.RecordReminder(ctx, tier, err)
		if err != nil {
			s.log.Warn("due reminder delivery failed",
				zap.String("subscriber_id", current.SubscriberID.String()),
				zap.Int("tier", tier),
				zap.Error(err),
			)
			return fmt.Errorf("send reminder: %w", err)
		}

		outcome = reminderSent
		if tier > current.EscalationLevel {
			outcome = reminderEscalated
		}

		sentAt := now
		next := now.Add(cfg.Cadence(tier))
		current.EscalationLevel = tier
		current.DaysOverdue = days
		current.ReminderCount++
		current.LastReminderSentAt = &sentAt
		current.NextReminderDue = &next
		current.UpdatedAt = now
		if err := s.repo.Save(ctx, tx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return reminderSkipped, err
	}
	if updated == nil {
		s.log.Debug("due reminder skipped",
			zap.String("subscriber_id", candidate.SubscriberID.String()),
			zap.String("tracker_id", candidate.ID.String()),
		)
		return reminderSkipped, nil
	}

	s.audit(ctx, auditdomain.Entry{
		SubscriberID: updated.SubscriberID,
		Action:       auditdomain.ActionDueReminderSent,
		TargetType:   "due_tracker",
		TargetID:     updated.ID.String(),
		NewValue: map[string]any{
			"escalation_level": updated.EscalationLevel,
			"days_overdue":     updated.DaysOverdue,
			"reminder_count":   updated.ReminderCount,
		},
	})
	s.bus.Publish(ctx, events.Event{Type: events.EventDueChanged, SubscriberID: updated.SubscriberID, Period: lastKey(updated), OccurredAt: now})
	return outcome, nil
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

func reminderFor(tracker *duedomain.DueTracker, days, tier int, currency string) notify.Notification {
	amount := tracker.TotalDueAmount.StringFixed(2)
	return notify.Notification{
		SubscriberID: tracker.SubscriberID.String(),
		Title:        "Fee payment overdue",
		Message: fmt.Sprintf("%s %s is overdue by %d day(s) for %s.",
			currency, amount, days, strings.Join(tracker.Periods, ", ")),
		Type: notify.TypeDueReminder,
		Metadata: map[string]any{
			"tier":             tier,
			"days_overdue":     days,
			"total_due_amount": amount,
			"periods":          []string(tracker.Periods),
		},
	}
}

func lastKey(tracker *duedomain.DueTracker) string {
	if tracker == nil || len(tracker.Periods) == 0 {
		return ""
	}
	return tracker.Periods[len(tracker.Periods)-1]
}
