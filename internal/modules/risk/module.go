package risk

import (
	"signal_bot/internal/modules/risk/service"
	"signal_bot/internal/modules/risk/service/pg"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("risk",
		fx.Provide(
			pg.NewRiskParams,
			service.NewSizer,
		),
	)
}
