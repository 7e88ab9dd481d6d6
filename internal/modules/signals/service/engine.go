package service

import (
	"sort"

	"signal_bot/internal/models"

	"github.com/pkg/errors"
)

// Engine turns an ordered candle sequence into indicator snapshots. It is a
// pure transformation: same candles + same params always produce identical
// snapshots, so recomputes are idempotent.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

// Compute emits one snapshot per candle once lookback is satisfied. Bars
// before the lookback window produce nothing at all; downstream must treat
// a missing snapshot as "no signal", never as a computed zero.
func (e *Engine) Compute(candles []models.Candle, p models.IndicatorParams) ([]models.IndicatorSnapshot, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !sort.SliceIsSorted(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	}) {
		return nil, errors.New("candles must be in ascending timestamp order")
	}
	for i := 1; i < len(candles); i++ {
		if candles[i].Timestamp.Equal(candles[i-1].Timestamp) {
			return nil, errors.Errorf("duplicate candle at %s", candles[i].Timestamp)
		}
	}

	kc := newKeltner(p)
	rv := newRVI(p.RVIPeriod)

	out := make([]models.IndicatorSnapshot, 0, len(candles))
	for _, c := range candles {
		kc.update(c)
		rv.update(c.Open, c.High, c.Low, c.Close)

		if !kc.ready() || !rv.ready() {
			continue
		}
		out = append(out, models.IndicatorSnapshot{
			Timestamp:    c.Timestamp,
			Symbol:       c.Symbol,
			Timeframe:    c.Timeframe,
			KeltnerUpper: kc.upper(),
			KeltnerLower: kc.lower(),
			RVI:          rv.value(),
		})
	}
	return out, nil
}
