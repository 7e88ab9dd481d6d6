package pg

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Records stores combined signal rows, one-to-one with snapshots.
type Records struct {
	db db.TxManager
}

func NewRecords(txm db.TxManager) *Records {
	return &Records{db: txm}
}

func (r *Records) ReplaceSeries(ctx context.Context, symbol, timeframe string, recs []models.SignalRecord) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Records.ReplaceSeries: %w", err)
		}
	}()

	return r.db.RunSerialized(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`DELETE FROM signals_data WHERE symbol = $1 AND timeframe = $2`,
			symbol, timeframe)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			_, err := tx.Exec(ctxTx, `
INSERT INTO signals_data (ts, symbol, timeframe, keltner_signal, rvi_signal, rvi_signal_15m, final_signal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (ts, symbol, timeframe) DO UPDATE
SET keltner_signal = EXCLUDED.keltner_signal,
    rvi_signal = EXCLUDED.rvi_signal,
    rvi_signal_15m = EXCLUDED.rvi_signal_15m,
    final_signal = EXCLUDED.final_signal`,
				rec.Timestamp.UTC(), rec.Symbol, rec.Timeframe,
				int(rec.KeltnerSignal), int(rec.RVISignal),
				int(rec.RVISignal15m), int(rec.FinalSignal))
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Records) Range(ctx context.Context, symbol, timeframe string, from, to time.Time) (out []models.SignalRecord, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Records.Range: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
SELECT ts, symbol, timeframe, keltner_signal, rvi_signal, rvi_signal_15m, final_signal
FROM signals_data
WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts <= $4
ORDER BY ts ASC`,
			symbol, timeframe, from.UTC(), to.UTC())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec              models.SignalRecord
				ks, rs, r15, fin int
			)
			if err := rows.Scan(&rec.Timestamp, &rec.Symbol, &rec.Timeframe,
				&ks, &rs, &r15, &fin); err != nil {
				return err
			}
			rec.Timestamp = rec.Timestamp.UTC()
			rec.KeltnerSignal = models.SignalCode(ks)
			rec.RVISignal = models.SignalCode(rs)
			rec.RVISignal15m = models.SignalCode(r15)
			rec.FinalSignal = models.SignalCode(fin)
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// Latest returns the newest signal row for the pair, nil when none exists.
func (r *Records) Latest(ctx context.Context, symbol, timeframe string) (rec *models.SignalRecord, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Records.Latest: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx, `
SELECT ts, symbol, timeframe, keltner_signal, rvi_signal, rvi_signal_15m, final_signal
FROM signals_data
WHERE symbol = $1 AND timeframe = $2
ORDER BY ts DESC LIMIT 1`,
			symbol, timeframe)

		var (
			got              models.SignalRecord
			ks, rs, r15, fin int
		)
		if err := row.Scan(&got.Timestamp, &got.Symbol, &got.Timeframe,
			&ks, &rs, &r15, &fin); err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return err
		}
		got.Timestamp = got.Timestamp.UTC()
		got.KeltnerSignal = models.SignalCode(ks)
		got.RVISignal = models.SignalCode(rs)
		got.RVISignal15m = models.SignalCode(r15)
		got.FinalSignal = models.SignalCode(fin)
		rec = &got
		return nil
	})
	return rec, err
}
