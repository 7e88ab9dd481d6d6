package service

import (
	"time"

	"signal_bot/internal/models"
)

// fifteenMinTolerance bounds how stale an aligned 15m signal may be.
const fifteenMinTolerance = 15 * time.Minute

// TimedSignal is a signal code pinned to a bar-close timestamp, used to
// carry the 15m RVI series into the combiner.
type TimedSignal struct {
	Timestamp time.Time
	Code      models.SignalCode
}

// Combiner derives signal records from indicator snapshots. All signals are
// cross based: a code fires on the bar where the boundary is first crossed,
// then returns to 0 while the condition merely persists.
type Combiner struct{}

func NewCombiner() *Combiner { return &Combiner{} }

// Combine walks snapshots in order and emits one SignalRecord per snapshot.
// closes must map 1:1 onto snapshots (the close of the same bar). rvi15 is
// the 15m RVI signal series, already cross-based, or nil when the filter is
// disabled.
func (cb *Combiner) Combine(
	snapshots []models.IndicatorSnapshot,
	closes []float64,
	p models.IndicatorParams,
	rvi15 []TimedSignal,
) []models.SignalRecord {
	out := make([]models.SignalRecord, 0, len(snapshots))

	for i, snap := range snapshots {
		rec := models.SignalRecord{
			Timestamp: snap.Timestamp,
			Symbol:    snap.Symbol,
			Timeframe: snap.Timeframe,
		}

		if i > 0 {
			prev := snapshots[i-1]
			rec.KeltnerSignal = crossSignal(
				closes[i], snap.KeltnerUpper, snap.KeltnerLower,
				closes[i-1], prev.KeltnerUpper, prev.KeltnerLower,
			)
			rec.RVISignal = crossSignal(
				snap.RVI, p.RVIUpperThreshold, p.RVILowerThreshold,
				prev.RVI, p.RVIUpperThreshold, p.RVILowerThreshold,
			)
		}

		if p.Include15mRVI {
			aligned := asOf(rvi15, snap.Timestamp)
			// A disagreeing 15m signal vetoes the faster one, it never
			// overrides it.
			if aligned != models.SignalHold && aligned == rec.RVISignal {
				rec.RVISignal15m = aligned
			}
		}

		rec.FinalSignal = finalGate(rec, p.Include15mRVI)
		out = append(out, rec)
	}
	return out
}

// crossSignal reports +1 when the value crosses above the upper boundary,
// -1 when it crosses below the lower one, 0 otherwise. Being beyond a band
// without having just crossed it is not a signal.
func crossSignal(v, upper, lower, prevV, prevUpper, prevLower float64) models.SignalCode {
	if v > upper && prevV <= prevUpper {
		return models.SignalBuy
	}
	if v < lower && prevV >= prevLower {
		return models.SignalSell
	}
	return models.SignalHold
}

// finalGate is the conjunctive AND across evidence sources: any dissent or
// partial agreement yields no signal.
func finalGate(rec models.SignalRecord, include15m bool) models.SignalCode {
	for _, want := range []models.SignalCode{models.SignalBuy, models.SignalSell} {
		if rec.KeltnerSignal != want || rec.RVISignal != want {
			continue
		}
		if include15m && rec.RVISignal15m != want {
			continue
		}
		return want
	}
	return models.SignalHold
}

// asOf picks the latest 15m signal at or before ts, within tolerance.
// series must be ascending by timestamp.
func asOf(series []TimedSignal, ts time.Time) models.SignalCode {
	for i := len(series) - 1; i >= 0; i-- {
		s := series[i]
		if s.Timestamp.After(ts) {
			continue
		}
		if ts.Sub(s.Timestamp) > fifteenMinTolerance {
			return models.SignalHold
		}
		return s.Code
	}
	return models.SignalHold
}
