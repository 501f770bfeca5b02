package scheduler

import (
	"time"

	"github.com/smallbiznis/seatfee/internal/config"
)

const (
	JobBillingCycle    = "billing_cycle"
	JobEscalationSweep = "escalation_sweep"
)

// Config controls which jobs run and how they are guarded.
type Config struct {
	EnabledJobs  []string
	LeaseEnabled bool
	// LeasePadding is added to a job's timeout to size its lease.
	LeasePadding time.Duration
}

func DefaultConfig() Config {
	return Config{
		LeasePadding: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.LeasePadding <= 0 {
		c.LeasePadding = defaults.LeasePadding
	}
	return c
}

func ProvideConfig(cfg config.Config) Config {
	out := DefaultConfig()
	out.LeaseEnabled = cfg.SchedulerLeaseEnabled && cfg.RedisEnabled()
	return out
}
