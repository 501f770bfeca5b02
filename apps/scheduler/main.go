package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/seatfee/internal/advance"
	"github.com/smallbiznis/seatfee/internal/audit"
	"github.com/smallbiznis/seatfee/internal/billingcycle"
	"github.com/smallbiznis/seatfee/internal/cache"
	"github.com/smallbiznis/seatfee/internal/clock"
	"github.com/smallbiznis/seatfee/internal/config"
	"github.com/smallbiznis/seatfee/internal/due"
	"github.com/smallbiznis/seatfee/internal/events"
	"github.com/smallbiznis/seatfee/internal/ledger"
	"github.com/smallbiznis/seatfee/internal/notify"
	"github.com/smallbiznis/seatfee/internal/observability"
	"github.com/smallbiznis/seatfee/internal/scheduler"
	"github.com/smallbiznis/seatfee/internal/subscriber"
	"github.com/smallbiznis/seatfee/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the jobs
		events.Module,
		cache.Module,
		notify.Module,
		audit.Module,
		subscriber.Module,
		ledger.Module,
		due.Module,
		advance.Module,
		billingcycle.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
