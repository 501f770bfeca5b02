package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/robfig/cron/v3"
	billingcycledomain "github.com/smallbiznis/seatfee/internal/billingcycle/domain"
	"github.com/smallbiznis/seatfee/internal/clock"
	"github.com/smallbiznis/seatfee/internal/config"
	duedomain "github.com/smallbiznis/seatfee/internal/due/domain"
	obsmetrics "github.com/smallbiznis/seatfee/internal/observability/metrics"
	obstracing "github.com/smallbiznis/seatfee/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrUnknownJob    = errors.New("unknown_scheduler_job")
)

type Params struct {
	fx.In

	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	FeeConfig       *config.FeeConfigHolder
	BillingCycleSvc billingcycledomain.Service
	DueSvc          duedomain.Service
	Lease           Lease  `optional:"true"`
	Config          Config `optional:"true"`
}

type Scheduler struct {
	log             *zap.Logger
	cfg             Config
	genID           *snowflake.Node
	clock           clock.Clock
	feeConfig       *config.FeeConfigHolder
	billingCycleSvc billingcycledomain.Service
	dueSvc          duedomain.Service
	lease           Lease

	mu   sync.Mutex
	cron *cron.Cron
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.FeeConfig == nil || p.BillingCycleSvc == nil || p.DueSvc == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()

	var lease Lease
	if cfg.LeaseEnabled {
		lease = p.Lease
	}

	return &Scheduler{
		log:             p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:             cfg,
		genID:           p.GenID,
		clock:           p.Clock,
		feeConfig:       p.FeeConfig,
		billingCycleSvc: p.BillingCycleSvc,
		dueSvc:          p.DueSvc,
		lease:           lease,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	schedMetrics := obsmetrics.Scheduler()

	if s.lease != nil {
		token, acquired, err := s.lease.TryAcquire(parent, name, timeout+s.cfg.LeasePadding)
		if err != nil {
			schedMetrics.IncJobError(name, err)
			return fmt.Errorf("%s: acquire lease: %w", name, err)
		}
		if !acquired {
			schedMetrics.IncJobSkipped(name, obsmetrics.SchedulerSkipReasonLeaseHeld)
			s.log.Info("scheduler.job.skipped", zap.String("job", name), zap.String("reason", obsmetrics.SchedulerSkipReasonLeaseHeld))
			return nil
		}
		defer func() {
			if err := s.lease.Release(context.Background(), name, token); err != nil {
				s.log.Warn("release scheduler lease failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics.IncJobRun(name)

	ctx, span := obstracing.Start(ctx, "scheduler."+name,
		attribute.String("scheduler.job", name),
		attribute.String("scheduler.run_id", run.runID),
	)
	defer span.End()

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if err != nil {
		span.RecordError(obstracing.SafeError(err))
		span.SetStatus(codes.Error, name+" failed")
	}
	if owner {
		if err != nil && run.errorCount == 0 {
			run.AddErrors(1)
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout: the next run resumes where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

type job struct {
	Name string
	Spec string
	Run  func(context.Context) error
}

func (s *Scheduler) jobs() []job {
	cfg := s.feeConfig.Get()
	return []job{
		{Name: JobBillingCycle, Spec: cfg.BillingCycleCron, Run: s.BillingCycleJob},
		{Name: JobEscalationSweep, Spec: cfg.EscalationSweepCron, Run: s.EscalationSweepJob},
	}
}

// RunOnce runs every enabled job once, billing before the sweep so records
// promoted to DUE are reminded in the same pass.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	for _, j := range s.jobs() {
		err = errors.Join(err, s.RunJob(parent, j.Name))
	}
	return err
}

// RunJob runs a single job by name under its timeout and lease.
func (s *Scheduler) RunJob(parent context.Context, name string) error {
	for _, j := range s.jobs() {
		if j.Name != name {
			continue
		}
		if !s.isJobEnabled(name) {
			obsmetrics.Scheduler().IncJobSkipped(name, obsmetrics.SchedulerSkipReasonDisabled)
			return nil
		}
		return s.runJob(parent, j.Name, s.feeConfig.Get().JobTimeout, j.Run)
	}
	return fmt.Errorf("%s: %w", name, ErrUnknownJob)
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// Start registers every enabled job on its cron spec. Specs are read once;
// a fee config reload that changes them takes effect on restart.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	logger := cronLogger{log: s.log.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	for _, j := range s.jobs() {
		if !s.isJobEnabled(j.Name) {
			continue
		}
		name := j.Name
		if _, err := c.AddFunc(j.Spec, func() {
			if err := s.RunJob(ctx, name); err != nil {
				s.log.Warn("scheduler run failed", zap.String("job", name), zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, j.Spec, err)
		}
		s.log.Info("scheduler.job.registered", zap.String("job", name), zap.String("spec", j.Spec))
	}

	c.Start()
	s.cron = c
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) BillingCycleJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)

	result, err := s.billingCycleSvc.RunCycle(ctx, s.clock.Now())
	run.AddProcessed(result.Generated + result.Promoted)
	run.AddErrors(len(result.Errors))
	s.logItemErrors(ctx, JobBillingCycle, result.Errors)
	if err != nil {
		return err
	}

	s.logger(ctx).Info("billing cycle completed",
		zap.Int("generated", result.Generated),
		zap.Int("skipped", result.Skipped),
		zap.Int("promoted", result.Promoted),
		zap.Int("advance_applied", result.AdvanceApplied),
		zap.Int("errors", len(result.Errors)),
	)
	return nil
}

func (s *Scheduler) EscalationSweepJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)

	result, err := s.dueSvc.RunEscalationSweep(ctx, s.clock.Now())
	run.AddProcessed(result.Processed)
	run.AddErrors(len(result.Errors))
	s.logItemErrors(ctx, JobEscalationSweep, result.Errors)
	if err != nil {
		return err
	}

	s.logger(ctx).Info("escalation sweep completed",
		zap.Int("processed", result.Processed),
		zap.Int("escalated", result.Escalated),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", len(result.Errors)),
	)
	return nil
}
