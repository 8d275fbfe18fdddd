package reminder

import (
	"github.com/smallbiznis/kilekitabu/internal/reminder/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reminder.service",
	fx.Provide(service.NewService),
)
