package portfolio

import (
	exsvc "signal_bot/internal/modules/exchange/service"
	"signal_bot/internal/modules/portfolio/service"
	trackerpg "signal_bot/internal/modules/tracker/service/pg"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("portfolio",
		fx.Provide(
			func(f *trackerpg.Fills) service.FillSource { return f },
			func(c *exsvc.Client) service.QuoteSource { return c },
			service.NewAggregator,
		),
	)
}
