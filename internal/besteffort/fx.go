package besteffort

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("besteffort",
	fx.Provide(DefaultConfig),
	fx.Provide(NewRunner),
	fx.Provide(func(r *Runner) Submitter { return r }),
	fx.Invoke(runRunner),
)

func runRunner(lc fx.Lifecycle, runner *Runner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runner.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return runner.Stop(ctx)
		},
	})
}
