package booking

import (
	"github.com/plannivo/finance/internal/booking/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("booking.repository",
	fx.Provide(repository.Provide),
)
