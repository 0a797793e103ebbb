package ledger

import (
	"github.com/plannivo/finance/internal/ledger/repository"
	"github.com/plannivo/finance/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
