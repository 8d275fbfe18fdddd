package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/kilekitabu/internal/clock"
	"github.com/smallbiznis/kilekitabu/internal/config"
	"github.com/smallbiznis/kilekitabu/internal/events"
	"github.com/smallbiznis/kilekitabu/internal/ledger"
	"github.com/smallbiznis/kilekitabu/internal/notification"
	"github.com/smallbiznis/kilekitabu/internal/observability"
	"github.com/smallbiznis/kilekitabu/internal/providers"
	"github.com/smallbiznis/kilekitabu/internal/ratelimit"
	"github.com/smallbiznis/kilekitabu/internal/reminder"
	"github.com/smallbiznis/kilekitabu/internal/scheduler"
	"github.com/smallbiznis/kilekitabu/pkg/db"
	"go.uber.org/fx"
)

// The worker runs the reminder job loop without the HTTP surface. Replicas
// coordinate through the redis job lock when REDIS_ADDR is set.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,
		providers.Module,
		ratelimit.Module,

		// Domain services required by scheduler
		ledger.Module,
		notification.Module,
		reminder.Module,

		// No server module!
		fx.Provide(scheduler.ProvideConfig),
		fx.Provide(scheduler.New),
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
