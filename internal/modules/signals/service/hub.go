package service

import (
	"context"
	"sync"
	"time"

	"signal_bot/internal/apperrors"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// CandleSource is the read side of the storage collaborator.
type CandleSource interface {
	Range(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
}

// SnapshotStore persists a full derived series atomically.
type SnapshotStore interface {
	ReplaceSeries(ctx context.Context, symbol, timeframe string, snaps []models.IndicatorSnapshot) error
}

type RecordStore interface {
	ReplaceSeries(ctx context.Context, symbol, timeframe string, recs []models.SignalRecord) error
}

// Hub runs signal recomputation. At most one recompute per (symbol,
// timeframe) is in flight at a time; a full series is always recomputed with
// a single parameter set, so mixed-parameter history cannot occur.
type Hub struct {
	engine   *Engine
	combiner *Combiner
	candles  CandleSource
	snaps    SnapshotStore
	records  RecordStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewHub(candles CandleSource, snaps SnapshotStore, records RecordStore) *Hub {
	return &Hub{
		engine:   NewEngine(),
		combiner: NewCombiner(),
		candles:  candles,
		snaps:    snaps,
		records:  records,
		locks:    map[string]*sync.Mutex{},
	}
}

// RecomputeReport tells the caller what a recompute produced. Gap is non-nil
// when candles were missing inside the range; computation still ran on the
// bars that exist.
type RecomputeReport struct {
	Snapshots int
	Records   int
	Gap       *apperrors.DataGapError
}

func (h *Hub) pairLock(symbol, timeframe string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := symbol + ":" + timeframe
	l, ok := h.locks[key]
	if !ok {
		l = &sync.Mutex{}
		h.locks[key] = l
	}
	return l
}

// Recompute rebuilds the snapshot and signal series for one pair over
// [from, to] with the given parameters.
func (h *Hub) Recompute(ctx context.Context, p models.IndicatorParams, from, to time.Time) (RecomputeReport, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "signals.recompute")
	defer span.Finish()
	span.SetTag("symbol", p.Symbol)
	span.SetTag("timeframe", p.Timeframe)

	if err := p.Validate(); err != nil {
		return RecomputeReport{}, err
	}

	l := h.pairLock(p.Symbol, p.Timeframe)
	l.Lock()
	defer l.Unlock()

	candles, err := h.candles.Range(ctx, p.Symbol, p.Timeframe, from, to)
	if err != nil {
		return RecomputeReport{}, errors.Wrap(err, "load candles")
	}
	if len(candles) == 0 {
		return RecomputeReport{}, errors.Errorf("no candles for %s/%s in range", p.Symbol, p.Timeframe)
	}

	report := RecomputeReport{Gap: detectGap(candles, p.Timeframe)}
	if report.Gap != nil {
		logger.Error("recompute %s/%s: %v (continuing on available data)",
			p.Symbol, p.Timeframe, report.Gap)
	}

	snaps, err := h.engine.Compute(candles, p)
	if err != nil {
		return RecomputeReport{}, err
	}

	var rvi15 []TimedSignal
	if p.Include15mRVI {
		if models.NormTF(p.Timeframe) == "15m" {
			// the pair's own bars already are the 15m series
			rvi15 = RVISignalSeries(candles, p)
		} else {
			rvi15, err = h.fifteenMinSeries(ctx, p, from, to)
			if err != nil {
				return RecomputeReport{}, err
			}
		}
	}

	closes := alignCloses(candles, snaps)
	recs := h.combiner.Combine(snaps, closes, p, rvi15)

	if err := h.snaps.ReplaceSeries(ctx, p.Symbol, p.Timeframe, snaps); err != nil {
		return RecomputeReport{}, errors.Wrap(err, "persist snapshots")
	}
	if err := h.records.ReplaceSeries(ctx, p.Symbol, p.Timeframe, recs); err != nil {
		return RecomputeReport{}, errors.Wrap(err, "persist signal records")
	}

	report.Snapshots = len(snaps)
	report.Records = len(recs)
	logger.Info("recompute %s/%s: %d snapshots, %d records",
		p.Symbol, p.Timeframe, report.Snapshots, report.Records)
	return report, nil
}

// fifteenMinSeries computes the cross-based 15m RVI signal series used as
// the confirmation gate.
func (h *Hub) fifteenMinSeries(ctx context.Context, p models.IndicatorParams, from, to time.Time) ([]TimedSignal, error) {
	// extend the window back so the 15m RVI has lookback at `from`
	lookback := time.Duration(p.RVI15mPeriod+4) * 15 * time.Minute
	candles15, err := h.candles.Range(ctx, p.Symbol, "15m", from.Add(-lookback), to)
	if err != nil {
		return nil, errors.Wrap(err, "load 15m candles")
	}
	if len(candles15) == 0 {
		// filter enabled but no 15m data: gate stays 0 everywhere
		logger.Error("recompute %s: 15m filter enabled but no 15m candles", p.Symbol)
		return nil, nil
	}
	return RVISignalSeries(candles15, p), nil
}

// RVISignalSeries streams the candles through a 15m-period RVI and emits the
// cross-based signal per bar. Shared between live recomputes and backtests.
func RVISignalSeries(candles []models.Candle, p models.IndicatorParams) []TimedSignal {
	rv := newRVI(p.RVI15mPeriod)
	out := make([]TimedSignal, 0, len(candles))
	var prev float64
	var havePrev bool
	for _, c := range candles {
		rv.update(c.Open, c.High, c.Low, c.Close)
		if !rv.ready() {
			continue
		}
		v := rv.value()
		code := models.SignalHold
		if havePrev {
			code = crossSignal(v, p.RVI15mUpperThreshold, p.RVI15mLowerThreshold,
				prev, p.RVI15mUpperThreshold, p.RVI15mLowerThreshold)
		}
		out = append(out, TimedSignal{Timestamp: c.Timestamp, Code: code})
		prev = v
		havePrev = true
	}
	return out
}

// alignCloses picks the close of each snapshotted bar. Snapshots are a
// suffix-aligned subsequence of candles, both ascending.
func alignCloses(candles []models.Candle, snaps []models.IndicatorSnapshot) []float64 {
	closes := make([]float64, len(snaps))
	ci := 0
	for si, s := range snaps {
		for ci < len(candles) && !candles[ci].Timestamp.Equal(s.Timestamp) {
			ci++
		}
		if ci < len(candles) {
			closes[si] = candles[ci].Close
		}
	}
	return closes
}

// detectGap counts bars missing between the first and last candle. Gaps are
// tolerated (exchanges have maintenance windows) but must be flagged, never
// papered over with fabricated bars.
func detectGap(candles []models.Candle, timeframe string) *apperrors.DataGapError {
	d := models.TFDuration(timeframe)
	if d <= 0 || len(candles) < 2 {
		return nil
	}
	first, last := candles[0].Timestamp, candles[len(candles)-1].Timestamp
	expected := int(last.Sub(first)/d) + 1
	if expected <= len(candles) {
		return nil
	}
	return &apperrors.DataGapError{
		Symbol:    candles[0].Symbol,
		Timeframe: timeframe,
		From:      first,
		To:        last,
		Missing:   expected - len(candles),
	}
}
