package commission

import (
	"github.com/plannivo/finance/internal/commission/repository"
	"github.com/plannivo/finance/internal/commission/service"
	"go.uber.org/fx"
)

var Module = fx.Module("commission.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
