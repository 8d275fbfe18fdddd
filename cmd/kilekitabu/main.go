package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/config"
	"github.com/smallbiznis/kilekitabu/internal/events"
	"github.com/smallbiznis/kilekitabu/internal/ledger"
	"github.com/smallbiznis/kilekitabu/internal/migration"
	"github.com/smallbiznis/kilekitabu/internal/notification"
	"github.com/smallbiznis/kilekitabu/internal/observability"
	"github.com/smallbiznis/kilekitabu/internal/payment"
	"github.com/smallbiznis/kilekitabu/internal/providers"
	"github.com/smallbiznis/kilekitabu/internal/ratelimit"
	"github.com/smallbiznis/kilekitabu/internal/reminder"
	"github.com/smallbiznis/kilekitabu/internal/scheduler"
	"github.com/smallbiznis/kilekitabu/internal/server"
	"github.com/smallbiznis/kilekitabu/internal/usage"
	"github.com/smallbiznis/kilekitabu/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		events.Module,
		providers.Module,
		ratelimit.Module,

		// Functional Domains
		ledger.Module,
		usage.Module,
		payment.Module,
		notification.Module,
		reminder.Module,

		// in-process job loop, off unless SCHEDULER_ENABLED
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
