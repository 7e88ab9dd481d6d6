package service

import (
	"context"
	"math"
	"testing"
	"time"

	"signal_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	byTF map[string][]models.Candle
}

func (m *memSource) Range(_ context.Context, _ string, timeframe string, from, to time.Time) ([]models.Candle, error) {
	var out []models.Candle
	for _, c := range m.byTF[timeframe] {
		if c.Timestamp.Before(from) || c.Timestamp.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func hourly(closes ...float64) []models.Candle {
	start := time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c + 1, Low: c - 1, Close: c,
			Volume:    10,
			Symbol:    "BTCUSDT",
			Timeframe: "1h",
		}
	}
	return out
}

func testRequest(initial float64) models.BacktestRequest {
	return models.BacktestRequest{
		Symbol:        "BTCUSDT",
		Timeframe:     "1h",
		From:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:            time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Indicator:     models.DefaultIndicatorParams("BTCUSDT", "1h"),
		Risk:          models.DefaultRiskParams("BTCUSDT"),
		InitialEquity: initial,
	}
}

func TestReplayBuyThenPartialExit(t *testing.T) {
	e := NewEngine(nil)
	candles := hourly(100, 100, 100)
	sigs := map[time.Time]models.SignalCode{
		candles[0].Timestamp: models.SignalBuy,
		candles[2].Timestamp: models.SignalSell,
	}

	res, err := e.replay(testRequest(1000), candles, sigs)
	require.NoError(t, err)
	require.Len(t, res.TradeLog, 2)

	buy := res.TradeLog[0]
	assert.Equal(t, models.SideBuy, buy.Side)
	assert.InDelta(t, 0.5, buy.Quantity, 1e-9) // 5% of 1000 at 100

	sell := res.TradeLog[1]
	assert.Equal(t, models.SideSell, sell.Side)
	assert.InDelta(t, 0.1, sell.Quantity, 1e-9) // 20% of 0.5
	assert.InDelta(t, 0, sell.PnL, 1e-9)
	assert.False(t, sell.Stoploss)

	// flat prices, so equity never moves
	for _, p := range res.EquityCurve {
		assert.InDelta(t, 1000, p.Equity, 1e-9)
	}
}

func TestReplayStoplossClosesFullPosition(t *testing.T) {
	e := NewEngine(nil)
	candles := hourly(100, 85, 85)
	sigs := map[time.Time]models.SignalCode{
		candles[0].Timestamp: models.SignalBuy,
		// bar 1 has no signal: the stop must fire on its own
	}

	res, err := e.replay(testRequest(1000), candles, sigs)
	require.NoError(t, err)
	require.Len(t, res.TradeLog, 2)

	stop := res.TradeLog[1]
	assert.Equal(t, models.SideSell, stop.Side)
	assert.True(t, stop.Stoploss)
	assert.InDelta(t, 0.5, stop.Quantity, 1e-9)
	assert.InDelta(t, -7.5, stop.PnL, 1e-9) // 0.5 * (85 - 100)

	// position fully closed, nothing sells on the next bar
	assert.InDelta(t, 992.5, res.EquityCurve[2].Equity, 1e-9)
}

func TestReplayBuyNeverSpendsMoreThanCash(t *testing.T) {
	e := NewEngine(nil)
	candles := hourly(100)
	sigs := map[time.Time]models.SignalCode{candles[0].Timestamp: models.SignalBuy}

	req := testRequest(1000)
	req.Risk.PositionSize = 1.0
	req.Risk.MaxAllocation = 1.0

	res, err := e.replay(req, candles, sigs)
	require.NoError(t, err)
	require.Len(t, res.TradeLog, 1)
	assert.InDelta(t, 10.0, res.TradeLog[0].Quantity, 1e-9)
	assert.InDelta(t, 1000, res.EquityCurve[0].Equity, 1e-9)
}

func TestRunDeterministic(t *testing.T) {
	// enough variation to move the indicators, short periods so the
	// lookback is satisfied early
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + 8*math.Sin(float64(i)/3) + float64(i%5)
	}
	src := &memSource{byTF: map[string][]models.Candle{"1h": hourly(closes...)}}
	e := NewEngine(src)

	req := testRequest(1000)
	req.Indicator.KeltnerPeriod = 5
	req.Indicator.RVIPeriod = 5
	req.Indicator.KeltnerUpperMultiplier = 0.5
	req.Indicator.KeltnerLowerMultiplier = 0.5

	first, err := e.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	require.Equal(t, first, second)
	assert.Len(t, first.EquityCurve, 60)
}

func TestRunDefaultsInitialEquity(t *testing.T) {
	src := &memSource{byTF: map[string][]models.Candle{"1h": hourly(100, 100, 100, 100)}}
	e := NewEngine(src)

	res, err := e.Run(context.Background(), testRequest(0))
	require.NoError(t, err)
	require.NotEmpty(t, res.EquityCurve)
	assert.InDelta(t, 100, res.EquityCurve[0].Equity, 1e-9)
	assert.Empty(t, res.TradeLog)
}

func TestRunRejectsBadInput(t *testing.T) {
	src := &memSource{byTF: map[string][]models.Candle{}}
	e := NewEngine(src)

	t.Run("empty range", func(t *testing.T) {
		req := testRequest(1000)
		req.To = req.From
		_, err := e.Run(context.Background(), req)
		require.Error(t, err)
	})

	t.Run("no candles", func(t *testing.T) {
		_, err := e.Run(context.Background(), testRequest(1000))
		require.Error(t, err)
	})

	t.Run("bad params", func(t *testing.T) {
		req := testRequest(1000)
		req.Indicator.KeltnerPeriod = 0
		_, err := e.Run(context.Background(), req)
		require.Error(t, err)
	})
}

func TestSummarize(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	curve := []models.EquityPoint{
		{Timestamp: ts, Equity: 100},
		{Timestamp: ts.Add(time.Hour), Equity: 110},
		{Timestamp: ts.Add(2 * time.Hour), Equity: 99},
		{Timestamp: ts.Add(3 * time.Hour), Equity: 120},
	}
	trades := []models.SimTrade{
		{Side: models.SideBuy},
		{Side: models.SideSell, PnL: 5},
		{Side: models.SideSell, PnL: -3},
	}

	s := summarize(100, curve, trades)
	assert.InDelta(t, 0.2, s.TotalReturn, 1e-9)
	assert.InDelta(t, 11.0/110.0, s.MaxDrawdown, 1e-9)
	assert.Equal(t, 2, s.Trades) // buys are entries, not trades
	assert.InDelta(t, 0.5, s.WinRate, 1e-9)
	assert.NotZero(t, s.Sharpe)
}

// A 15m run with the confirmation filter on must confirm from the run's own
// bars, not veto every signal for lack of a second 15m series.
func TestRun15mPairConfirmsFromOwnBars(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 12; i++ {
		candles = append(candles, models.Candle{
			Timestamp: base.Add(time.Duration(i) * 15 * time.Minute),
			Open:      100, High: 100.5, Low: 99.5, Close: 100,
			Volume:    1,
			Symbol:    "BTCUSDT",
			Timeframe: "15m",
		})
	}
	breakoutTS := base.Add(12 * 15 * time.Minute)
	candles = append(candles, models.Candle{
		Timestamp: breakoutTS,
		Open:      100, High: 104.2, Low: 99.8, Close: 104,
		Volume:    1,
		Symbol:    "BTCUSDT",
		Timeframe: "15m",
	})

	req := models.BacktestRequest{
		Symbol:    "BTCUSDT",
		Timeframe: "15m",
		From:      base,
		To:        breakoutTS,
		Indicator: models.IndicatorParams{
			Symbol: "BTCUSDT", Timeframe: "15m",
			KeltnerPeriod: 10, KeltnerUpperMultiplier: 1.0, KeltnerLowerMultiplier: 1.0,
			RVIPeriod: 10, RVIUpperThreshold: 0.05, RVILowerThreshold: -0.05,
			RVI15mPeriod: 10, RVI15mUpperThreshold: 0.05, RVI15mLowerThreshold: -0.05,
			Include15mRVI: true,
		},
		Risk:          models.DefaultRiskParams("BTCUSDT"),
		InitialEquity: 1000,
	}

	e := NewEngine(&memSource{byTF: map[string][]models.Candle{"15m": candles}})
	res, err := e.Run(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, res.TradeLog, 1, "breakout bar must trade")
	assert.Equal(t, models.SideBuy, res.TradeLog[0].Side)
	assert.Equal(t, breakoutTS, res.TradeLog[0].Timestamp)
}
