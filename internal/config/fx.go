package config

import "go.uber.org/fx"

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewFinanceConfigHolder),
	fx.Provide(func(h *FinanceConfigHolder) FinanceSource { return h }),
)
