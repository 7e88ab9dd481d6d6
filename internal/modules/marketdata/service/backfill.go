package service

import (
	"context"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
)

// HistorySource serves closed bars over REST.
type HistorySource interface {
	Candles(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]models.Candle, error)
}

// CandleSink is the persistence side of market data.
type CandleSink interface {
	UpsertBatch(ctx context.Context, candles []models.Candle) error
	// LastTimestamp is zero when the pair has no stored bars.
	LastTimestamp(ctx context.Context, symbol, timeframe string) (time.Time, error)
}

// Backfiller fills the candle store up to the last closed bar. Idempotent:
// bars are upserted, so overlapping runs converge on the same rows.
type Backfiller struct {
	source HistorySource
	sink   CandleSink
}

func NewBackfiller(source HistorySource, sink CandleSink) *Backfiller {
	return &Backfiller{source: source, sink: sink}
}

// Backfill loads missing bars for one pair. A fresh pair starts lookbackDays
// back; a known pair resumes one bar after its newest stored row.
func (b *Backfiller) Backfill(ctx context.Context, symbol, timeframe string, lookbackDays int) (int, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "marketdata.backfill")
	defer span.Finish()
	span.SetTag("symbol", symbol)
	span.SetTag("timeframe", timeframe)

	d := models.TFDuration(timeframe)
	if d <= 0 {
		return 0, errors.Errorf("backfill: unknown timeframe %q", timeframe)
	}

	now := time.Now().UTC()
	to := models.LastClosedBar(now, timeframe)

	from := now.AddDate(0, 0, -lookbackDays).Truncate(d)
	last, err := b.sink.LastTimestamp(ctx, symbol, timeframe)
	if err != nil {
		return 0, errors.Wrap(err, "last stored bar")
	}
	if !last.IsZero() && last.Add(d).After(from) {
		from = last.Add(d)
	}
	if from.After(to) {
		return 0, nil
	}

	total := 0
	cursor := from
	for !cursor.After(to) {
		batch, err := b.source.Candles(ctx, symbol, timeframe, cursor, to)
		if err != nil {
			return total, err
		}
		if len(batch) == 0 {
			break
		}
		if err := b.sink.UpsertBatch(ctx, batch); err != nil {
			return total, errors.Wrap(err, "store candles")
		}
		total += len(batch)

		next := batch[len(batch)-1].Timestamp.Add(d)
		if !next.After(cursor) {
			break
		}
		cursor = next
	}

	logger.Info("backfill %s/%s: %d bars up to %s", symbol, timeframe, total, to.Format(time.RFC3339))
	return total, nil
}
