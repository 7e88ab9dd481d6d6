package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"signal_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCandles struct {
	byTF map[string][]models.Candle
}

func (m *memCandles) Range(_ context.Context, _, timeframe string, _, _ time.Time) ([]models.Candle, error) {
	return m.byTF[timeframe], nil
}

type memSnapStore struct {
	mu       sync.Mutex
	snaps    []models.IndicatorSnapshot
	inFlight int
	overlap  bool
	calls    int
}

func (s *memSnapStore) ReplaceSeries(_ context.Context, _, _ string, snaps []models.IndicatorSnapshot) error {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlap = true
	}
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.calls++
	s.snaps = snaps
	s.mu.Unlock()
	return nil
}

type memRecStore struct {
	mu   sync.Mutex
	recs []models.SignalRecord
}

func (s *memRecStore) ReplaceSeries(_ context.Context, _, _ string, recs []models.SignalRecord) error {
	s.mu.Lock()
	s.recs = recs
	s.mu.Unlock()
	return nil
}

func quietBar(symbol, tf string, ts time.Time) models.Candle {
	return models.Candle{
		Timestamp: ts, Symbol: symbol, Timeframe: tf,
		Open: 100, High: 100.5, Low: 99.5, Close: 100, Volume: 1,
	}
}

// Recompute on a 15m pair with the confirmation filter on must derive the
// confirmation from the pair's own bars, so an agreeing breakout passes the
// gate instead of being vetoed by a missing series.
func TestRecompute15mPairSelfConfirms(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 12; i++ {
		candles = append(candles, quietBar("BTCUSDT", "15m", base.Add(time.Duration(i)*15*time.Minute)))
	}
	breakoutTS := base.Add(12 * 15 * time.Minute)
	candles = append(candles, models.Candle{
		Timestamp: breakoutTS, Symbol: "BTCUSDT", Timeframe: "15m",
		Open: 100, High: 104.2, Low: 99.8, Close: 104, Volume: 1,
	})

	p := models.IndicatorParams{
		Symbol: "BTCUSDT", Timeframe: "15m",
		KeltnerPeriod: 10, KeltnerUpperMultiplier: 1.0, KeltnerLowerMultiplier: 1.0,
		RVIPeriod: 10, RVIUpperThreshold: 0.05, RVILowerThreshold: -0.05,
		RVI15mPeriod: 10, RVI15mUpperThreshold: 0.05, RVI15mLowerThreshold: -0.05,
		Include15mRVI: true,
	}

	recs := &memRecStore{}
	hub := NewHub(&memCandles{byTF: map[string][]models.Candle{"15m": candles}}, &memSnapStore{}, recs)

	report, err := hub.Recompute(context.Background(), p, base, breakoutTS)
	require.NoError(t, err)
	require.Nil(t, report.Gap)
	require.Equal(t, 4, report.Records, "snapshots start once lookback is satisfied")

	last := recs.recs[len(recs.recs)-1]
	require.Equal(t, breakoutTS, last.Timestamp)
	assert.Equal(t, models.SignalBuy, last.KeltnerSignal)
	assert.Equal(t, models.SignalBuy, last.RVISignal)
	assert.Equal(t, models.SignalBuy, last.RVISignal15m, "own bars are the confirmation series")
	assert.Equal(t, models.SignalBuy, last.FinalSignal)

	// the preceding quiet bar stays hold
	assert.Equal(t, models.SignalHold, recs.recs[len(recs.recs)-2].FinalSignal)
}

func TestRecomputeSerializedPerPair(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var candles []models.Candle
	for i := 0; i < 12; i++ {
		candles = append(candles, quietBar("BTCUSDT", "1h", base.Add(time.Duration(i)*time.Hour)))
	}

	p := models.DefaultIndicatorParams("BTCUSDT", "1h")
	p.KeltnerPeriod, p.RVIPeriod = 10, 10

	snaps := &memSnapStore{}
	hub := NewHub(&memCandles{byTF: map[string][]models.Candle{"1h": candles}}, snaps, &memRecStore{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := hub.Recompute(context.Background(), p, base, base.Add(12*time.Hour))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, snaps.calls)
	assert.False(t, snaps.overlap, "recomputes for one pair must not interleave")
}
