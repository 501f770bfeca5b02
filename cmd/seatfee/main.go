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
	"github.com/smallbiznis/seatfee/internal/feesummary"
	"github.com/smallbiznis/seatfee/internal/ledger"
	"github.com/smallbiznis/seatfee/internal/migration"
	"github.com/smallbiznis/seatfee/internal/notify"
	"github.com/smallbiznis/seatfee/internal/observability"
	"github.com/smallbiznis/seatfee/internal/payment"
	"github.com/smallbiznis/seatfee/internal/scheduler"
	"github.com/smallbiznis/seatfee/internal/server"
	"github.com/smallbiznis/seatfee/internal/subscriber"
	"github.com/smallbiznis/seatfee/pkg/db"
	"go.uber.org/fx"
)

// seatfee runs migrations, the HTTP API and the scheduler in one process.
func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		events.Module,
		cache.Module,
		notify.Module,
		audit.Module,
		subscriber.Module,
		ledger.Module,
		due.Module,
		advance.Module,
		payment.Module,
		billingcycle.Module,
		feesummary.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNode)
}
