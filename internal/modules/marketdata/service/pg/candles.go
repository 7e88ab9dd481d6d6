package pg

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Candles is the candle store. Writes are idempotent upserts keyed on
// (timestamp, symbol, timeframe); reads come back in timestamp order.
type Candles struct {
	db db.TxManager
}

func NewCandles(txm db.TxManager) *Candles {
	return &Candles{db: txm}
}

const upsertCandleSQL = `
INSERT INTO historical_data (ts, open, high, low, close, volume, symbol, timeframe)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (ts, symbol, timeframe) DO UPDATE
SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
    close = EXCLUDED.close, volume = EXCLUDED.volume`

func (r *Candles) UpsertBatch(ctx context.Context, candles []models.Candle) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Candles.UpsertBatch: %w", err)
		}
	}()

	return r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		for _, c := range candles {
			_, err := tx.Exec(ctxTx, upsertCandleSQL,
				c.Timestamp.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume,
				c.Symbol, models.NormTF(c.Timeframe))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Range returns all candles for (symbol, timeframe) within [from, to] in
// ascending timestamp order.
func (r *Candles) Range(ctx context.Context, symbol, timeframe string, from, to time.Time) (out []models.Candle, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Candles.Range: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
SELECT ts, open, high, low, close, volume, symbol, timeframe
FROM historical_data
WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts <= $4
ORDER BY ts ASC`,
			symbol, models.NormTF(timeframe), from.UTC(), to.UTC())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var c models.Candle
			if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low,
				&c.Close, &c.Volume, &c.Symbol, &c.Timeframe); err != nil {
				return err
			}
			c.Timestamp = c.Timestamp.UTC()
			out = append(out, c)
		}
		return rows.Err()
	})
	return out, err
}

// LastTimestamp returns the newest stored bar-close time, zero when none.
func (r *Candles) LastTimestamp(ctx context.Context, symbol, timeframe string) (ts time.Time, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Candles.LastTimestamp: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		var last *time.Time
		row := tx.QueryRow(ctxTx, `
SELECT MAX(ts) FROM historical_data WHERE symbol = $1 AND timeframe = $2`,
			symbol, models.NormTF(timeframe))
		if err := row.Scan(&last); err != nil {
			return err
		}
		if last != nil {
			ts = last.UTC()
		}
		return nil
	})
	return ts, err
}
