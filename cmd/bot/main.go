package main

import (
	"context"
	"log"

	"signal_bot/internal/modules/backtest"
	"signal_bot/internal/modules/bootstrap"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/exchange"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/marketdata"
	"signal_bot/internal/modules/portfolio"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/risk"
	"signal_bot/internal/modules/signals"
	"signal_bot/internal/modules/tracker"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"go.uber.org/fx"
)

const serviceName = "signal_bot"

func main() {
	logger.SetServiceName(serviceName)
	tracing.SetServiceName(serviceName)

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(cfg *config.Config) {
			logger.Init(cfg.LogFile)
		}),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			tracer, closer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Tracing.Host,
				Port: cfg.Tracing.Port,
			})
			if err != nil {
				// tracing is optional; the bot trades without it
				logger.Error("tracing init: %v", err)
				return nil
			}
			_ = tracer
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				closer()
				return nil
			}})
			return nil
		}),
		postgres.Module(),
		exchange.Module(),
		marketdata.Module(),
		signals.Module(),
		risk.Module(),
		backtest.Module(),
		tracker.Module(),
		portfolio.Module(),
		health.Module(),
		bootstrap.Module(),
		runner.Module(),
	)
	if err := app.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	<-app.Done()
}
