package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/seatfee/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSchedulerMetricsPrimesFeeJobs(t *testing.T) {
	metrics.ResetSchedulerMetricsForTest()
	ensureSchedulerMetrics(metrics.Config{ServiceName: "seatfee", Environment: "test"})

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, family := range families {
		if family.GetName() != "seatfee_scheduler_batch_processed_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			seen[labels["job"]+"/"+labels["outcome"]] = true
		}
	}

	for job, outcomes := range feeJobOutcomes {
		for _, outcome := range outcomes {
			assert.True(t, seen[job+"/"+outcome], "missing series %s/%s", job, outcome)
		}
	}
	assert.True(t, seen["escalation_sweep/skipped"])
}
