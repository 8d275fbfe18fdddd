package config

import (
	ledgerdomain "github.com/smallbiznis/kilekitabu/internal/ledger/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRatesHolder),
	fx.Provide(func(h *RatesHolder) ledgerdomain.RatesSource { return h }),
)
