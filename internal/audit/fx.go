package audit

import (
	"github.com/plannivo/finance/internal/audit/repository"
	"github.com/plannivo/finance/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
