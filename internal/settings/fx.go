package settings

import (
	"github.com/plannivo/finance/internal/settings/domain"
	"github.com/plannivo/finance/internal/settings/repository"
	"github.com/plannivo/finance/internal/settings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewResolver),
	fx.Provide(
		func(r *service.Resolver) domain.Resolver { return r },
		func(r *service.Resolver) domain.TxResolver { return r },
	),
)
