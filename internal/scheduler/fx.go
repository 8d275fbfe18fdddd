package scheduler

import (
	"context"

	"github.com/smallbiznis/kilekitabu/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module runs the reminder loop inside the API process when
// SCHEDULER_ENABLED is set. Otherwise the /api/cron endpoints drive it.
var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(runInProcess),
)

func runInProcess(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		log.Info("scheduler disabled; cron endpoints remain the trigger")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				sched.RunForever(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}
