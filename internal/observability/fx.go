package observability

import (
	"github.com/smallbiznis/kilekitabu/internal/observability/logger"
	"github.com/smallbiznis/kilekitabu/internal/observability/metrics"
	"github.com/smallbiznis/kilekitabu/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// scheduler metrics carry service/env const labels, so they are
	// registered once here before any job touches the singleton
	fx.Invoke(func(_ *sdktrace.TracerProvider, cfg metrics.Config) {
		metrics.SchedulerWithConfig(cfg)
	}),
)
