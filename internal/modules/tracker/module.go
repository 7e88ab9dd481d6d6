package tracker

import (
	"context"

	exsvc "signal_bot/internal/modules/exchange/service"
	"signal_bot/internal/modules/tracker/service"
	"signal_bot/internal/modules/tracker/service/pg"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("tracker",
		fx.Provide(
			pg.NewOrders,
			pg.NewFills,
			func(c *exsvc.Client) service.OrderPlacer { return c },
			func(c *exsvc.Client) service.StatusSource { return c },
			func(c *exsvc.Client) service.OrderCanceler { return c },
			func(r *pg.Orders) service.OrderStore { return r },
			func(r *pg.Fills) service.FillStore { return r },
			service.NewTracker,
		),
		fx.Invoke(func(lc fx.Lifecycle, t *service.Tracker) {
			resumeCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					// pick up orders left non-terminal by a previous run
					if _, err := t.Resume(resumeCtx); err != nil {
						logger.Error("order resume: %v", err)
					}
					return nil
				},
				OnStop: func(_ context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
