package config

import (
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FeeConfig holds the tunables of the billing and escalation rules. It is
// hot reloaded from fee.yaml.
type FeeConfig struct {
	GraceDays           int           `mapstructure:"grace_days" validate:"gte=0,lte=27"`
	ReminderCadenceDays []int         `mapstructure:"reminder_cadence_days" validate:"len=6,dive,gt=0"`
	BillingCycleCron    string        `mapstructure:"billing_cycle_cron" validate:"required"`
	EscalationSweepCron string        `mapstructure:"escalation_sweep_cron" validate:"required"`
	BatchSize           int           `mapstructure:"batch_size" validate:"gt=0,lte=5000"`
	JobTimeout          time.Duration `mapstructure:"job_timeout" validate:"gt=0"`
	SummaryCacheTTL     time.Duration `mapstructure:"summary_cache_ttl" validate:"gte=0"`
	Currency            string        `mapstructure:"currency" validate:"required,len=3"`
}

func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		GraceDays:           5,
		ReminderCadenceDays: []int{1, 2, 4, 8, 15, 30},
		BillingCycleCron:    "5 0 * * *",
		EscalationSweepCron: "0 * * * *",
		BatchSize:           200,
		JobTimeout:          5 * time.Minute,
		SummaryCacheTTL:     30 * time.Second,
		Currency:            "INR",
	}
}

// Grace returns the window after a period's due date before it turns DUE.
func (c FeeConfig) Grace() time.Duration {
	return time.Duration(c.GraceDays) * 24 * time.Hour
}

// Cadence returns the reminder interval for an escalation tier.
func (c FeeConfig) Cadence(tier int) time.Duration {
	days := c.ReminderCadenceDays
	if len(days) == 0 {
		days = DefaultFeeConfig().ReminderCadenceDays
	}
	if tier < 0 {
		tier = 0
	}
	if tier >= len(days) {
		tier = len(days) - 1
	}
	return time.Duration(days[tier]) * 24 * time.Hour
}

type FeeConfigHolder struct {
	current atomic.Value // holds FeeConfig
}

// StaticFeeConfig returns a holder that never reloads.
func StaticFeeConfig(cfg FeeConfig) *FeeConfigHolder {
	holder := &FeeConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewFeeConfigHolder() (*FeeConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("fee")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/seatfee")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SEATFEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFeeConfig()
	v.SetDefault("fee.grace_days", defaults.GraceDays)
	v.SetDefault("fee.reminder_cadence_days", defaults.ReminderCadenceDays)
	v.SetDefault("fee.billing_cycle_cron", defaults.BillingCycleCron)
	v.SetDefault("fee.escalation_sweep_cron", defaults.EscalationSweepCron)
	v.SetDefault("fee.batch_size", defaults.BatchSize)
	v.SetDefault("fee.job_timeout", defaults.JobTimeout)
	v.SetDefault("fee.summary_cache_ttl", defaults.SummaryCacheTTL)
	v.SetDefault("fee.currency", defaults.Currency)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg FeeConfig
	if err := v.UnmarshalKey("fee", &cfg); err != nil {
		return nil, err
	}
	if err := ValidateFeeConfig(cfg); err != nil {
		return nil, err
	}

	holder := &FeeConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FeeConfig
		if err := v.UnmarshalKey("fee", &updated); err != nil {
			log.Printf("[fee-config] reload failed: %v", err)
			return
		}
		if err := ValidateFeeConfig(updated); err != nil {
			log.Printf("[fee-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[fee-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *FeeConfigHolder) Get() FeeConfig {
	return h.current.Load().(FeeConfig)
}

var configValidator = validator.New()

func ValidateFeeConfig(cfg FeeConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid fee config: %w", err)
	}
	for i := 1; i < len(cfg.ReminderCadenceDays); i++ {
		if cfg.ReminderCadenceDays[i] < cfg.ReminderCadenceDays[i-1] {
			return fmt.Errorf("invalid fee config: reminder_cadence_days must not decrease")
		}
	}
	return nil
}
