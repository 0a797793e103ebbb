package revenue

import (
	"github.com/plannivo/finance/internal/revenue/repository"
	"github.com/plannivo/finance/internal/revenue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("revenue.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
