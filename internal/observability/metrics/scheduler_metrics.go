package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"gorm.io/gorm"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUniqueViolation      = "unique_violation"
	SchedulerJobReasonBusinessRule         = "business_rule"
	SchedulerJobReasonDB                   = "db"
	SchedulerJobReasonUnknown              = "unknown"
)

const (
	SchedulerSkipReasonLeaseHeld = "lease_held"
	SchedulerSkipReasonDisabled  = "disabled"
)

const (
	LockResourceSubscriber  = "subscriber"
	LockResourceDueTrackers = "due_trackers"
)

// SchedulerMetrics captures fee scheduler health signals.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobSkipped     *prometheus.CounterVec
	batchProcessed *prometheus.CounterVec
	itemErrors     *prometheus.CounterVec
	dbLockWait     *prometheus.HistogramVec
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "seatfee"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seatfee_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "seatfee_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seatfee_scheduler_job_timeouts_total",
			Help:        "Scheduler jobs that hit their soft timeout.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seatfee_scheduler_job_errors_total",
			Help:        "Scheduler job errors by low-cardinality reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		jobSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seatfee_scheduler_job_skipped_total",
			Help:        "Scheduler job runs skipped, e.g. because another replica holds the lease.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		batchProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seatfee_scheduler_batch_processed_total",
			Help:        "Batch items processed by job and outcome.",
			ConstLabels: constLabels,
		}, []string{"job", "outcome"}),
		itemErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "seatfee_scheduler_item_errors_total",
			Help:        "Per-subscriber batch item failures by reason.",
			ConstLabels: constLabels,
		}, []string{"job", "reason"}),
		dbLockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "seatfee_scheduler_db_lock_wait_seconds",
			Help:        "Time spent waiting on SELECT FOR UPDATE.",
			Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"resource"}),
	}

	registerer.MustRegister(
		m.jobRuns,
		m.jobDuration,
		m.jobTimeouts,
		m.jobErrors,
		m.jobSkipped,
		m.batchProcessed,
		m.itemErrors,
		m.dbLockWait,
	)
	return m
}

// Prime creates the zero-valued run and outcome series for each job so
// absent() alerts and rate panels see a job before its first run.
func (m *SchedulerMetrics) Prime(outcomes map[string][]string) {
	if m == nil {
		return
	}
	for job, names := range outcomes {
		m.jobRuns.WithLabelValues(job)
		m.jobTimeouts.WithLabelValues(job)
		for _, outcome := range names {
			m.batchProcessed.WithLabelValues(job, outcome)
		}
	}
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the job error counter with a classified reason.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) IncJobSkipped(job, reason string) {
	if m == nil {
		return
	}
	m.jobSkipped.WithLabelValues(job, reason).Inc()
}

// AddBatchProcessed adds count items for a job outcome (generated, skipped,
// processed, escalated).
func (m *SchedulerMetrics) AddBatchProcessed(job, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job, outcome).Add(float64(count))
}

func (m *SchedulerMetrics) IncItemError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.itemErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) ObserveDBLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return SchedulerJobReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return SchedulerJobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return SchedulerJobReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return SchedulerJobReasonUniqueViolation
	}
	if _, ok := errs.KindOf(err); ok {
		return SchedulerJobReasonBusinessRule
	}
	if isDBError(err) {
		return SchedulerJobReasonDB
	}
	return SchedulerJobReasonUnknown
}

// IsSchedulerErrorRetryable reports whether the next run may succeed without
// intervention.
func IsSchedulerErrorRetryable(err error) bool {
	switch ClassifySchedulerJobReason(err) {
	case SchedulerJobReasonDeadlineExceeded, SchedulerJobReasonDBLockTimeout,
		SchedulerJobReasonSerializationFailure, SchedulerJobReasonDB:
		return true
	default:
		return false
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
