package runner

import (
	"context"

	"signal_bot/internal/modules/config"
	portfoliosvc "signal_bot/internal/modules/portfolio/service"
	riskpg "signal_bot/internal/modules/risk/service/pg"
	signalpg "signal_bot/internal/modules/signals/service/pg"
	"signal_bot/internal/notify"
	"signal_bot/pkg/logger"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(r *signalpg.Records) LatestSignal { return r },
			func(r *riskpg.RiskParams) RiskSource { return r },
			func(p *signalpg.Params) ParamsSource { return p },
			newNotifier,
			New,
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner) {
			runCtx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go r.Run(runCtx)
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

// newNotifier picks telegram when a token is configured, stdout otherwise.
func newNotifier(lc fx.Lifecycle, cfg *config.Config, portfolio *portfoliosvc.Aggregator) notify.Notifier {
	if cfg.Telegram.Token == "" {
		return notify.NewStdout()
	}

	tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, portfolio)
	if err != nil {
		logger.Error("telegram init: %v, falling back to stdout", err)
		return notify.NewStdout()
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return tg.Start(context.Background())
		},
	})
	return tg
}
