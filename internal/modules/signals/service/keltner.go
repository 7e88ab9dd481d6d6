package service

import (
	"math"

	"signal_bot/internal/models"
)

// keltner is a streaming Keltner Channel: middle line is an SMA of close,
// band offset is an EMA-smoothed average true range scaled by independent
// per-side multipliers.
//
// ATR smoothing is pinned: alpha = 2/(period+1), seeded with the SMA of the
// first `period` true ranges. The first bar's true range is high-low (no
// prior close exists).
type keltner struct {
	period    int
	upperMult float64
	lowerMult float64

	closes []float64

	atr       float64
	trSum     float64
	trCount   int
	prevClose float64
	hasPrev   bool
}

func newKeltner(p models.IndicatorParams) *keltner {
	return &keltner{
		period:    p.KeltnerPeriod,
		upperMult: p.KeltnerUpperMultiplier,
		lowerMult: p.KeltnerLowerMultiplier,
		closes:    make([]float64, 0, p.KeltnerPeriod),
	}
}

func (k *keltner) update(c models.Candle) {
	k.closes = append(k.closes, c.Close)
	if len(k.closes) > k.period {
		k.closes = k.closes[1:]
	}

	tr := c.High - c.Low
	if k.hasPrev {
		tr = math.Max(c.High-c.Low,
			math.Max(math.Abs(c.High-k.prevClose), math.Abs(c.Low-k.prevClose)))
	}

	if k.trCount < k.period {
		k.trSum += tr
		k.trCount++
		if k.trCount == k.period {
			k.atr = k.trSum / float64(k.period)
		}
	} else {
		alpha := 2.0 / float64(k.period+1)
		k.atr += alpha * (tr - k.atr)
	}

	k.prevClose = c.Close
	k.hasPrev = true
}

func (k *keltner) ready() bool {
	return len(k.closes) >= k.period && k.trCount >= k.period
}

func (k *keltner) middle() float64 {
	sum := 0.0
	for _, c := range k.closes {
		sum += c
	}
	return sum / float64(len(k.closes))
}

func (k *keltner) upper() float64 { return k.middle() + k.atr*k.upperMult }
func (k *keltner) lower() float64 { return k.middle() - k.atr*k.lowerMult }
