package signals

import (
	"signal_bot/internal/modules/signals/service"
	"signal_bot/internal/modules/signals/service/pg"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("signals",
		fx.Provide(
			pg.NewSnapshots,
			pg.NewRecords,
			pg.NewParams,
			func(s *pg.Snapshots) service.SnapshotStore { return s },
			func(r *pg.Records) service.RecordStore { return r },
			service.NewHub, // *service.Hub (CandleSource, SnapshotStore, RecordStore)
		),
	)
}
