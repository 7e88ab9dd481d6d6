package service

import (
	"context"
	"math"
	"time"

	"signal_bot/internal/models"
	risksvc "signal_bot/internal/modules/risk/service"
	signalsvc "signal_bot/internal/modules/signals/service"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

const defaultInitialEquity = 100.0

// Engine replays historical candles through the indicator engine, signal
// combiner and position sizer in strict timestamp order. Orders sized at bar
// t fill at bar t's close: there is no slippage or partial-fill model in
// this offline mode because no execution-latency model exists either.
//
// A run is fully deterministic: identical requests return bit-identical
// results, and nothing here touches live order or portfolio state.
type Engine struct {
	candles  signalsvc.CandleSource
	ind      *signalsvc.Engine
	combiner *signalsvc.Combiner
	sizer    *risksvc.Sizer
}

func NewEngine(candles signalsvc.CandleSource) *Engine {
	return &Engine{
		candles:  candles,
		ind:      signalsvc.NewEngine(),
		combiner: signalsvc.NewCombiner(),
		sizer:    risksvc.NewSizer(),
	}
}

func (e *Engine) Run(ctx context.Context, req models.BacktestRequest) (*models.BacktestResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "backtest.run")
	defer span.Finish()
	span.SetTag("symbol", req.Symbol)

	if err := req.Indicator.Validate(); err != nil {
		return nil, err
	}
	if err := req.Risk.Validate(); err != nil {
		return nil, err
	}
	if !req.From.Before(req.To) {
		return nil, errors.New("backtest: empty date range")
	}

	candles, err := e.candles.Range(ctx, req.Symbol, req.Timeframe, req.From, req.To)
	if err != nil {
		return nil, errors.Wrap(err, "load candles")
	}
	if len(candles) == 0 {
		return nil, errors.Errorf("backtest: no candles for %s/%s", req.Symbol, req.Timeframe)
	}

	snaps, err := e.ind.Compute(candles, req.Indicator)
	if err != nil {
		return nil, err
	}

	var rvi15 []signalsvc.TimedSignal
	if req.Indicator.Include15mRVI {
		if models.NormTF(req.Timeframe) == "15m" {
			rvi15 = signalsvc.RVISignalSeries(candles, req.Indicator)
		} else {
			lookback := time.Duration(req.Indicator.RVI15mPeriod+4) * 15 * time.Minute
			candles15, err := e.candles.Range(ctx, req.Symbol, "15m", req.From.Add(-lookback), req.To)
			if err != nil {
				return nil, errors.Wrap(err, "load 15m candles")
			}
			rvi15 = signalsvc.RVISignalSeries(candles15, req.Indicator)
		}
	}

	closes := make([]float64, len(snaps))
	ci := 0
	for i, s := range snaps {
		for ci < len(candles) && !candles[ci].Timestamp.Equal(s.Timestamp) {
			ci++
		}
		if ci < len(candles) {
			closes[i] = candles[ci].Close
		}
	}

	sigByTS := make(map[time.Time]models.SignalCode, len(snaps))
	for _, rec := range e.combiner.Combine(snaps, closes, req.Indicator, rvi15) {
		sigByTS[rec.Timestamp] = rec.FinalSignal
	}

	return e.replay(req, candles, sigByTS)
}

// replay walks the bars, applying the sizer against the running ledger.
func (e *Engine) replay(req models.BacktestRequest, candles []models.Candle, sigByTS map[time.Time]models.SignalCode) (*models.BacktestResult, error) {
	initial := req.InitialEquity
	if initial <= 0 {
		initial = defaultInitialEquity
	}

	acct := risksvc.Account{Cash: initial}
	result := &models.BacktestResult{
		Request:     req,
		EquityCurve: make([]models.EquityPoint, 0, len(candles)),
	}

	for _, bar := range candles {
		price := bar.Close
		// a bar before the lookback window carries no signal at all
		sig := sigByTS[bar.Timestamp]

		intent, err := e.sizer.Size(sig, acct, req.Risk,
			models.Quote{Symbol: req.Symbol, Price: price, At: bar.Timestamp})
		if err != nil {
			return nil, err
		}
		if intent != nil {
			acct = applyFill(acct, intent, price, bar.Timestamp, result)
		}

		result.EquityCurve = append(result.EquityCurve, models.EquityPoint{
			Timestamp: bar.Timestamp,
			Equity:    acct.Cash + acct.Position.MarketValue(price),
		})
	}

	result.Summary = summarize(initial, result.EquityCurve, result.TradeLog)
	return result, nil
}

func applyFill(acct risksvc.Account, intent *models.OrderIntent, price float64, ts time.Time, result *models.BacktestResult) risksvc.Account {
	switch intent.Side {
	case models.SideBuy:
		cost := intent.Quantity * price
		if cost > acct.Cash {
			cost = acct.Cash
			intent.Quantity = cost / price
		}
		if intent.Quantity <= 0 {
			return acct
		}
		pos := acct.Position
		newQty := pos.Quantity + intent.Quantity
		pos.AverageEntryPrice = (pos.AverageEntryPrice*pos.Quantity + cost) / newQty
		if pos.Quantity == 0 {
			pos.OpenedAt = ts
			pos.Symbol = intent.Symbol
		}
		pos.Quantity = newQty
		acct.Cash -= cost
		acct.Position = pos

		result.TradeLog = append(result.TradeLog, models.SimTrade{
			Timestamp: ts,
			Side:      models.SideBuy,
			Price:     price,
			Quantity:  intent.Quantity,
		})

	case models.SideSell:
		pos := acct.Position
		qty := math.Min(intent.Quantity, pos.Quantity)
		if qty <= 0 {
			return acct
		}
		proceeds := qty * price
		pnl := qty * (price - pos.AverageEntryPrice)

		result.TradeLog = append(result.TradeLog, models.SimTrade{
			Timestamp:  ts,
			Side:       models.SideSell,
			Price:      price,
			Quantity:   qty,
			PnL:        pnl,
			EntryPrice: pos.AverageEntryPrice,
			Stoploss:   intent.Stoploss,
		})

		pos.Quantity -= qty
		if pos.Quantity <= 1e-9 {
			pos = models.Position{}
		}
		acct.Cash += proceeds
		acct.Position = pos
	}
	return acct
}
