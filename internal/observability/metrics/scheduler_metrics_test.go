package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/seatfee/pkg/errs"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: SchedulerJobReasonUniqueViolation},
		{name: "business_rule", err: fmt.Errorf("subscriber 7: %w", errs.Conflict("ledger_record_locked")), want: SchedulerJobReasonBusinessRule},
		{name: "other_pg", err: &pgconn.PgError{Code: "08006"}, want: SchedulerJobReasonDB},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if !IsSchedulerErrorRetryable(&pgconn.PgError{Code: "40001"}) {
		t.Fatalf("serialization failures should be retryable")
	}
	if IsSchedulerErrorRetryable(errs.Validation("invalid_amount")) {
		t.Fatalf("validation errors must not be retried")
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "seatfee",
		Environment: "test",
	})

	metrics.AddBatchProcessed("billing_cycle", "generated", 3)
	metrics.AddBatchProcessed("billing_cycle", "generated", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("billing_cycle", "generated"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestIncItemErrorUsesReason(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{})

	metrics.IncItemError("escalation_sweep", context.DeadlineExceeded)

	got := testutil.ToFloat64(metrics.itemErrors.WithLabelValues("escalation_sweep", SchedulerJobReasonDeadlineExceeded))
	if got != 1 {
		t.Fatalf("expected 1 item error, got %v", got)
	}
}

func TestPrimeCreatesZeroSeries(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{ServiceName: "seatfee", Environment: "test"})

	metrics.Prime(map[string][]string{
		"billing_cycle":    {"generated", "skipped"},
		"escalation_sweep": {"processed"},
	})

	if got := testutil.CollectAndCount(metrics.batchProcessed); got != 3 {
		t.Fatalf("expected 3 outcome series, got %d", got)
	}
	if got := testutil.CollectAndCount(metrics.jobRuns); got != 2 {
		t.Fatalf("expected 2 run series, got %d", got)
	}
	if got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("billing_cycle", "skipped")); got != 0 {
		t.Fatalf("expected primed series at 0, got %v", got)
	}
}
