package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/seatfee/internal/audit/domain"
	"github.com/smallbiznis/seatfee/internal/clock"
	"github.com/smallbiznis/seatfee/internal/config"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	"github.com/smallbiznis/seatfee/internal/events"
	ledgerdomain "github.com/smallbiznis/seatfee/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/seatfee/internal/observability/metrics"
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
	FeeConfig   *config.FeeConfigHolder
	Repo        ledgerdomain.Repository
	Subscribers subscriberdomain.Directory
	DueSvc      duedomain.Service
	AuditSvc    auditdomain.Service `optional:"true"`
	Bus         *events.Bus         `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	feeConfig   *config.FeeConfigHolder
	repo        ledgerdomain.Repository
	subscribers subscriberdomain.Directory
	dueSvc      duedomain.Service
	auditSvc    auditdomain.Service
	bus         *events.Bus
	obsMetrics  *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("ledger.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		feeConfig:   p.FeeConfig,
		repo:        p.Repo,
		subscribers: p.Subscribers,
		dueSvc:      p.DueSvc,
		auditSvc:    p.AuditSvc,
		bus:         p.Bus,
		obsMetrics:  p.ObsMetrics,
	}
}

func (s *Service) EnsureLedgerRecordExists(ctx context.Context, req ledgerdomain.EnsureRequest) (ledgerdomain.LedgerRecord, error) {
	subscriberID, err := parseSubscriberID(req.SubscriberID)
	if err != nil {
		return ledgerdomain.LedgerRecord{}, err
	}
	p, err := period.Parse(req.Period)
	if err != nil {
		return ledgerdomain.LedgerRecord{}, err
	}

	now := s.clock.Now()
	var result ledgerdomain.EnsureResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscriber, err := s.lockSubscriber(ctx, tx, subscriberID)
		if err != nil {
			return err
		}
		result, err = s.EnsureTx(ctx, tx, subscriber, p, now)
		return err
	})
	if err != nil {
		return ledgerdomain.LedgerRecord{}, err
	}

	s.PublishCreated(ctx, ledgerdomain.SourceEnsure, result.Created)
	return *result.Record, nil
}

func (s *Service) MarkAsDue(ctx context.Context, req ledgerdomain.MarkAsDueRequest) (ledgerdomain.MarkAsDueResponse, error) {
	subscriberID, err := parseSubscriberID(req.SubscriberID)
	if err != nil {
		return ledgerdomain.MarkAsDueResponse{}, err
	}
	p, err := period.Parse(req.Period)
	if err != nil {
		return ledgerdomain.MarkAsDueResponse{}, err
	}

	now := s.clock.Now()
	var (
		result   ledgerdomain.EnsureResult
		tracker  *duedomain.DueTracker
		oldState ledgerdomain.Status
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		subscriber, err := s.lockSubscriber(ctx, tx, subscriberID)
		if err != nil {
			return err
		}
		result, err = s.EnsureTx(ctx, tx, subscriber, p, now)
		if err != nil {
			return err
		}

		record := result.Record
		if record.Locked {
			return ledgerdomain.ErrRecordLocked
		}
		if record.CarriedForwardOut.IsPositive() {
			return ledgerdomain.ErrPeriodCarriedForward
		}

		oldState = record.Status
		if record.Status == ledgerdomain.StatusPending {
			record.Status = ledgerdomain.StatusDue
			record.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, record); err != nil {
				return err
			}
		}

		tracker, err = s.dueSvc.TrackTx(ctx, tx, duedomain.TrackInput{
			SubscriberID: subscriberID,
			Period:       p,
			Outstanding:  record.Outstanding(),
			DueDate:      record.DueDate,
			ReminderAt:   req.ReminderDate,
		}, now)
		return err
	})
	if err != nil {
		return ledgerdomain.MarkAsDueResponse{}, err
	}

	s.PublishCreated(ctx, ledgerdomain.SourceDueMarking, result.Created)
	s.audit(ctx, auditdomain.Entry{
		SubscriberID: subscriberID,
		Action:       auditdomain.ActionLedgerMarkedDue,
		TargetType:   "ledger_record",
		TargetID:     result.Record.ID.String(),
		OldValue:     map[string]any{"status": oldState},
		NewValue:     map[string]any{"status": result.Record.Status, "tracked_periods": tracker.Periods},
	})
	s.bus.Publish(ctx, events.Event{Type: events.EventDueChanged, SubscriberID: subscriberID, Period: p.String(), OccurredAt: now})

	return ledgerdomain.MarkAsDueResponse{Record: *result.Record, Tracker: *tracker}, nil
}

func (s *Service) EnsureTx(ctx context.Context, tx *gorm.DB, subscriber *subscriberdomain.Subscriber, p period.Period, now time.Time) (ledgerdomain.EnsureResult, error) {
	existing, err := s.repo.FindByPeriod(ctx, tx, subscriber.ID, p.String())
	if err != nil {
		return ledgerdomain.EnsureResult{}, err
	}
	if existing != nil {
		return ledgerdomain.EnsureResult{Record: existing}, nil
	}

	if period.AnchorDate(p, subscriber.BillingAnchorDay).After(now) {
		return ledgerdomain.EnsureResult{}, ledgerdomain.ErrPeriodInFuture
	}

	start := p
	latest, err := s.repo.FindLatest(ctx, tx, subscriber.ID)
	if err != nil {
		return ledgerdomain.EnsureResult{}, err
	}
	if latest != nil {
		latestPeriod := latest.PeriodKey()
		if latestPeriod.After(p) {
			return ledgerdomain.EnsureResult{}, ledgerdomain.ErrPeriodOutOfOrder
		}
		start = latestPeriod.Next()
	} else if first := period.Of(subscriber.NextBillingDate); !subscriber.NextBillingDate.IsZero() && first.Before(p) {
		// No history yet: begin at the first cycle the scheduler has not
		// billed, or the months in between are never billed.
		start = first
	}

	var result ledgerdomain.EnsureResult
	for cur := start; !cur.After(p); cur = cur.Next() {
		dueDate := period.AnchorDate(cur, subscriber.BillingAnchorDay)
		if latest == nil && cur == period.Of(subscriber.NextBillingDate) {
			dueDate = subscriber.NextBillingDate.UTC()
		}
		record, created, err := s.GenerateTx(ctx, tx, subscriber, cur, dueDate, now, ledgerdomain.SourceEnsure)
		if err != nil {
			return ledgerdomain.EnsureResult{}, err
		}
		if created {
			result.Created = append(result.Created, *record)
		}
		result.Record = record
	}
	return result, nil
}

func (s *Service) GenerateTx(ctx context.Context, tx *gorm.DB, subscriber *subscriberdomain.Subscriber, p period.Period, dueDate time.Time, now time.Time, source string) (*ledgerdomain.LedgerRecord, bool, error) {
	key := p.String()
	existing, err := s.repo.FindByPeriod(ctx, tx, subscriber.ID, key)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	latest, err := s.repo.FindLatest(ctx, tx, subscriber.ID)
	if err != nil {
		return nil, false, err
	}
	if latest != nil && latest.PeriodKey().After(p) {
		return nil, false, ledgerdomain.ErrPeriodOutOfOrder
	}

	prev, err := s.repo.FindByPeriod(ctx, tx, subscriber.ID, p.Prev().String())
	if err != nil {
		return nil, false, err
	}
	carry, err := s.carryForward(ctx, tx, subscriber.ID, p, prev, now)
	if err != nil {
		return nil, false, err
	}

	status := ledgerdomain.StatusPending
	if dueDate.Add(s.feeConfig.Get().Grace()).Before(now) {
		status = ledgerdomain.StatusDue
	}

	record := &ledgerdomain.LedgerRecord{
		ID:                s.genID.Generate(),
		SubscriberID:      subscriber.ID,
		Period:            key,
		BaseFee:           ledgerdomain.Round2(subscriber.BaseFee),
		DueCarriedForward: carry,
		PaidAmount:        decimal.Zero,
		AdvanceApplied:    decimal.Zero,
		CarriedForwardOut: decimal.Zero,
		Status:            status,
		DueDate:           dueDate.UTC(),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	inserted, err := s.repo.Insert(ctx, tx, record)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		existing, err := s.repo.FindByPeriod(ctx, tx, subscriber.ID, key)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, ledgerdomain.ErrRecordNotFound
		}
		return existing, false, nil
	}

	if prev != nil && carry.IsPositive() && !prev.Locked {
		prev.CarriedForwardOut = ledgerdomain.Round2(prev.CarriedForwardOut.Add(prev.Residual()))
		prev.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, prev); err != nil {
			return nil, false, err
		}
	}

	if status == ledgerdomain.StatusDue {
		if _, err := s.dueSvc.TrackTx(ctx, tx, duedomain.TrackInput{
			SubscriberID: subscriber.ID,
			Period:       p,
			Outstanding:  record.Outstanding(),
			DueDate:      record.DueDate,
		}, now); err != nil {
			return nil, false, err
		}
	}

	logger := s.log.With(
		zap.String("subscriber_id", subscriber.ID.String()),
		zap.String("period", key),
		zap.String("source", source),
	)
	logger.Debug("ledger record created",
		zap.String("status", string(status)),
		zap.String("due_carried_forward", carry.StringFixed(2)),
	)
	return record, true, nil
}

// carryForward decides how much of the previous period's balance is folded
// into p. An overdue PENDING predecessor is promoted first so the chain stays
// linear. The open tracker is only consulted as a floor, never added.
func (s *Service) carryForward(ctx context.Context, tx *gorm.DB, subscriberID snowflake.ID, p period.Period, prev *ledgerdomain.LedgerRecord, now time.Time) (decimal.Decimal, error) {
	carry := decimal.Zero
	if prev != nil {
		if _, err := s.PromoteOverdueTx(ctx, tx, prev, now); err != nil {
			return decimal.Zero, err
		}
		if prev.Status != ledgerdomain.StatusPending {
			carry = prev.Residual()
		}
	}

	tracker, err := s.dueSvc.FindOpenTx(ctx, tx, subscriberID)
	if err != nil {
		return decimal.Zero, err
	}
	if tracker != nil {
		if last, ok := tracker.LastPeriod(); ok && last == p.Prev() {
			carry = decimal.Max(carry, tracker.TotalDueAmount)
		}
	}
	return ledgerdomain.Round2(carry), nil
}

func (s *Service) PromoteOverdueTx(ctx context.Context, tx *gorm.DB, record *ledgerdomain.LedgerRecord, now time.Time) (bool, error) {
	if record == nil || record.Locked || record.Status != ledgerdomain.StatusPending {
		return false, nil
	}
	if !record.IsOverdue(now, s.feeConfig.Get().Grace()) {
		return false, nil
	}

	record.Status = ledgerdomain.StatusDue
	record.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, record); err != nil {
		return false, err
	}

	if _, err := s.dueSvc.TrackTx(ctx, tx, duedomain.TrackInput{
		SubscriberID: record.SubscriberID,
		Period:       record.PeriodKey(),
		Outstanding:  record.Outstanding(),
		DueDate:      record.DueDate,
	}, now); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) PublishCreated(ctx context.Context, source string, records []ledgerdomain.LedgerRecord) {
	for _, record := range records {
		s.obsMetrics.RecordLedgerRecordCreated(ctx, source, string(record.Status))
		s.audit(ctx, auditdomain.Entry{
			SubscriberID: record.SubscriberID,
			Action:       auditdomain.ActionLedgerRecordCreated,
			TargetType:   "ledger_record",
			TargetID:     record.ID.String(),
			NewValue: map[string]any{
				"period":              record.Period,
				"base_fee":            record.BaseFee.StringFixed(2),
				"due_carried_forward": record.DueCarriedForward.StringFixed(2),
				"status":              record.Status,
				"source":              source,
			},
		})
		s.bus.Publish(ctx, events.Event{
			Type:         events.EventLedgerRecordChanged,
			SubscriberID: record.SubscriberID,
			Period:       record.Period,
			OccurredAt:   record.CreatedAt,
		})
	}
}

func (s *Service) lockSubscriber(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*subscriberdomain.Subscriber, error) {
	start := time.Now()
	subscriber, err := s.subscribers.LockForUpdate(ctx, tx, id)
	obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceSubscriber, time.Since(start))
	if err != nil {
		return nil, err
	}
	if subscriber == nil {
		return nil, subscriberdomain.ErrSubscriberNotFound
	}
	return subscriber, nil
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
