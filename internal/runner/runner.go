package runner

import (
	"context"
	"sync"
	"time"

	"signal_bot/internal/apperrors"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	healthsvc "signal_bot/internal/modules/health/service"
	mdsvc "signal_bot/internal/modules/marketdata/service"
	portfoliosvc "signal_bot/internal/modules/portfolio/service"
	risksvc "signal_bot/internal/modules/risk/service"
	signalsvc "signal_bot/internal/modules/signals/service"
	trackersvc "signal_bot/internal/modules/tracker/service"
	"signal_bot/internal/notify"
	"signal_bot/pkg/logger"

	"github.com/pkg/errors"
)

// LatestSignal reads the newest combined signal row for a pair.
type LatestSignal interface {
	Latest(ctx context.Context, symbol, timeframe string) (*models.SignalRecord, error)
}

// RiskSource returns the stored (or default) risk parameters for a symbol.
type RiskSource interface {
	Get(ctx context.Context, symbol string) (models.RiskParams, error)
}

// ParamsSource returns indicator parameters for a pair.
type ParamsSource interface {
	Get(ctx context.Context, symbol, timeframe string) (models.IndicatorParams, error)
}

// Runner is the live loop: consume closed candles, persist them, recompute
// the derived series and act on the newest signal of the trade timeframe.
// One candle is processed at a time per (symbol, timeframe); the tracker
// runs orders on their own goroutines.
type Runner struct {
	cfg *config.Config

	stream  *mdsvc.Stream
	sink    mdsvc.CandleSink
	hub     *signalsvc.Hub
	latest  LatestSignal
	params  ParamsSource
	riskPar RiskSource
	sizer   *risksvc.Sizer
	tracker *trackersvc.Tracker
	fills   portfoliosvc.FillSource
	state   *healthsvc.State
	n       notify.Notifier

	// at most one in-flight order per symbol
	mu      sync.Mutex
	pending map[string]bool
}

func New(
	cfg *config.Config,
	stream *mdsvc.Stream,
	sink mdsvc.CandleSink,
	hub *signalsvc.Hub,
	latest LatestSignal,
	params ParamsSource,
	riskPar RiskSource,
	sizer *risksvc.Sizer,
	tracker *trackersvc.Tracker,
	fills portfoliosvc.FillSource,
	state *healthsvc.State,
	n notify.Notifier,
) *Runner {
	return &Runner{
		cfg:     cfg,
		stream:  stream,
		sink:    sink,
		hub:     hub,
		latest:  latest,
		params:  params,
		riskPar: riskPar,
		sizer:   sizer,
		tracker: tracker,
		fills:   fills,
		state:   state,
		n:       n,
		pending: map[string]bool{},
	}
}

// Run starts one stream consumer per timeframe and blocks until ctx is done.
func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, tf := range r.cfg.Timeframes {
		tf := tf
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.consume(ctx, tf)
		}()
	}
	wg.Wait()
}

func (r *Runner) consume(ctx context.Context, timeframe string) {
	ch := r.stream.StreamCandles(ctx, r.cfg.Watchlist, timeframe)
	r.state.SetWSConnected(true)
	defer r.state.SetWSConnected(false)

	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-ch:
			if !ok {
				return
			}
			if err := r.onCandle(ctx, candle); err != nil {
				logger.Error("candle %s/%s @ %s: %v",
					candle.Symbol, candle.Timeframe,
					candle.Timestamp.Format(time.RFC3339), err)
			}
		}
	}
}

func (r *Runner) onCandle(ctx context.Context, candle models.Candle) error {
	if err := r.sink.UpsertBatch(ctx, []models.Candle{candle}); err != nil {
		return errors.Wrap(err, "store candle")
	}
	r.state.TouchTick(candle.Timestamp)

	// 15m bars only feed the confirmation filter; recomputing the trade
	// timeframe picks them up
	if models.NormTF(candle.Timeframe) != models.NormTF(r.cfg.TradeTimeframe) {
		return nil
	}

	p, err := r.params.Get(ctx, candle.Symbol, candle.Timeframe)
	if err != nil {
		return errors.Wrap(err, "load params")
	}

	now := time.Now().UTC()
	if _, err := r.hub.Recompute(ctx, p, now.AddDate(0, 0, -r.cfg.LookbackDays), now); err != nil {
		return errors.Wrap(err, "recompute")
	}

	rec, err := r.latest.Latest(ctx, candle.Symbol, candle.Timeframe)
	if err != nil {
		return errors.Wrap(err, "latest signal")
	}

	// no signal row inside the lookback window means hold; the stoploss
	// check below still runs against the open position
	sig := models.SignalHold
	if rec != nil && rec.Timestamp.Equal(candle.Timestamp) {
		sig = rec.FinalSignal
	}

	return r.act(ctx, candle, sig)
}

func (r *Runner) act(ctx context.Context, candle models.Candle, sig models.SignalCode) error {
	symbol := candle.Symbol

	r.mu.Lock()
	if r.pending[symbol] {
		r.mu.Unlock()
		logger.Info("%s: order in flight, skipping bar %s", symbol, candle.Timestamp.Format(time.RFC3339))
		return nil
	}
	r.mu.Unlock()

	rp, err := r.riskPar.Get(ctx, symbol)
	if err != nil {
		return errors.Wrap(err, "load risk params")
	}

	acct, err := r.account(ctx, symbol)
	if err != nil {
		return err
	}

	intent, err := r.sizer.Size(sig, acct, rp,
		models.Quote{Symbol: symbol, Price: candle.Close, At: candle.Timestamp})
	if err != nil {
		return errors.Wrap(err, "size")
	}
	if intent == nil {
		return nil
	}

	order, err := r.tracker.Submit(ctx, intent)
	if err != nil {
		r.n.Sendf("order failed %s %s: %v", intent.Side, symbol, err)
		return errors.Wrap(err, "submit")
	}

	r.setPending(symbol, true)
	r.n.Sendf("%s %s qty=%.8f @ ~%.4f (%s)", intent.Side, symbol, intent.Quantity, candle.Close, intent.Reason)

	go func() {
		defer r.setPending(symbol, false)
		res, err := r.tracker.Track(ctx, order)
		if err != nil {
			var te *apperrors.TrackerTimeoutError
			if errors.As(err, &te) {
				r.n.Sendf("order %s still %s after %d polls, check manually", te.OrderID, te.LastStatus, te.Polls)
			} else if ctx.Err() == nil {
				logger.Error("track %s: %v", order.ID, err)
			}
			return
		}
		switch res.Status {
		case models.OrderFilled:
			r.n.Sendf("filled %s %s qty=%.8f @ avg %.4f", intent.Side, symbol, res.FilledQuantity, res.AvgFillPrice)
		case models.OrderCanceled:
			if res.FilledQuantity > 0 {
				r.n.Sendf("canceled %s %s, partial fill qty=%.8f @ avg %.4f", intent.Side, symbol, res.FilledQuantity, res.AvgFillPrice)
			} else {
				r.n.Sendf("canceled %s %s, nothing filled", intent.Side, symbol)
			}
		case models.OrderRejected:
			r.n.Sendf("rejected %s %s by venue (order %s)", intent.Side, symbol, order.ID)
		}
	}()
	return nil
}

func (r *Runner) setPending(symbol string, v bool) {
	r.mu.Lock()
	r.pending[symbol] = v
	r.mu.Unlock()
}

// account rebuilds the ledger from the fill journal: cash moves with every
// fill, the position is the FIFO fold for this symbol.
func (r *Runner) account(ctx context.Context, symbol string) (risksvc.Account, error) {
	fills, err := r.fills.All(ctx)
	if err != nil {
		return risksvc.Account{}, errors.Wrap(err, "load fills")
	}

	cash := r.cfg.InitialCash
	for _, f := range fills {
		switch f.Side {
		case models.SideBuy:
			cash -= f.FilledQuantity * f.FilledPrice
		case models.SideSell:
			cash += f.FilledQuantity * f.FilledPrice
		}
	}

	acct := risksvc.Account{Cash: cash}
	positions, _ := portfoliosvc.Fold(fills)
	for _, p := range positions {
		if p.Symbol == symbol {
			acct.Position = p
			break
		}
	}
	return acct, nil
}
