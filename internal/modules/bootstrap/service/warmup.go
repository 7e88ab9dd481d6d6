package service

import (
	"context"
	"sync"
	"time"

	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	mdsvc "signal_bot/internal/modules/marketdata/service"
	signalsvc "signal_bot/internal/modules/signals/service"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
)

// ParamsSource returns the stored (or default) indicator parameters for a
// pair.
type ParamsSource interface {
	Get(ctx context.Context, symbol, timeframe string) (models.IndicatorParams, error)
}

// Warmuper brings the candle store and the derived series up to date before
// the websocket stream takes over. Until it finishes the service reports
// not-ready.
type Warmuper struct {
	backfiller *mdsvc.Backfiller
	hub        *signalsvc.Hub
	params     ParamsSource
	state      *healthsvc.State
	cfg        *config.Config

	// rate-limit guard on the REST history endpoint
	sem chan struct{}
}

func NewWarmuper(
	backfiller *mdsvc.Backfiller,
	hub *signalsvc.Hub,
	params ParamsSource,
	state *healthsvc.State,
	cfg *config.Config,
) *Warmuper {
	return &Warmuper{
		backfiller: backfiller,
		hub:        hub,
		params:     params,
		state:      state,
		cfg:        cfg,
		sem:        make(chan struct{}, 4),
	}
}

// Warmup backfills and recomputes every (symbol, timeframe) pair, then
// flips the readiness flag. The first error wins but the remaining pairs
// still finish.
func (w *Warmuper) Warmup(ctx context.Context) error {
	start := time.Now()
	logger.Info("warmup: %d symbols x %v", len(w.cfg.Watchlist), w.cfg.Timeframes)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, sym := range w.cfg.Watchlist {
		for _, tf := range w.cfg.Timeframes {
			sym, tf := sym, tf
			wg.Add(1)
			go func() {
				defer wg.Done()
				w.sem <- struct{}{}
				defer func() { <-w.sem }()

				if err := w.warmupPair(ctx, sym, tf); err != nil {
					logger.Error("warmup %s/%s: %v", sym, tf, err)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
				}
			}()
		}
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	w.state.SetReady(true)
	logger.Info("warmup done in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func (w *Warmuper) warmupPair(ctx context.Context, symbol, timeframe string) error {
	n, err := w.backfiller.Backfill(ctx, symbol, timeframe, w.cfg.LookbackDays)
	if err != nil {
		return errors.Wrap(err, "backfill")
	}

	// the 15m series only feeds the confirmation filter, its snapshots are
	// never traded on
	if models.NormTF(timeframe) == "15m" && models.NormTF(w.cfg.TradeTimeframe) != "15m" {
		logger.Info("warmup %s/%s: %d bars (filter only)", symbol, timeframe, n)
		return nil
	}

	p, err := w.params.Get(ctx, symbol, timeframe)
	if err != nil {
		return errors.Wrap(err, "load params")
	}

	now := time.Now().UTC()
	_, err = w.hub.Recompute(ctx, p, now.AddDate(0, 0, -w.cfg.LookbackDays), now)
	return err
}
