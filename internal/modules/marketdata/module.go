package marketdata

import (
	exsvc "signal_bot/internal/modules/exchange/service"
	"signal_bot/internal/modules/marketdata/service"
	"signal_bot/internal/modules/marketdata/service/pg"
	signalsvc "signal_bot/internal/modules/signals/service"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("marketdata",
		fx.Provide(
			pg.NewCandles,
			service.NewStream,
			func(c *exsvc.Client) service.HistorySource { return c },
			func(c *pg.Candles) service.CandleSink { return c },
			func(c *pg.Candles) signalsvc.CandleSource { return c },
			service.NewBackfiller,
		),
	)
}
