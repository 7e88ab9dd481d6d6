package bootstrap

import (
	"context"

	bootstrap "signal_bot/internal/modules/bootstrap/service"
	signalpg "signal_bot/internal/modules/signals/service/pg"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(p *signalpg.Params) bootstrap.ParamsSource { return p },
			bootstrap.NewWarmuper,
		),
		fx.Invoke(func(lc fx.Lifecycle, wu *bootstrap.Warmuper) {
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					// warmup can take minutes on a deep lookback; readiness
					// gates traffic until it finishes
					go func() {
						if err := wu.Warmup(context.Background()); err != nil {
							logger.Error("warmup failed: %v", err)
						}
					}()
					return nil
				},
			})
		}),
	)
}
