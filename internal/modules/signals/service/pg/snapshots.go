package pg

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Snapshots stores derived indicator rows. A recompute always replaces the
// whole (symbol, timeframe) series inside one transaction so a reader never
// observes rows computed under mixed parameter sets.
type Snapshots struct {
	db db.TxManager
}

func NewSnapshots(txm db.TxManager) *Snapshots {
	return &Snapshots{db: txm}
}

// ReplaceSeries deletes the old series and writes the new one atomically.
func (r *Snapshots) ReplaceSeries(ctx context.Context, symbol, timeframe string, snaps []models.IndicatorSnapshot) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Snapshots.ReplaceSeries: %w", err)
		}
	}()

	return r.db.RunSerialized(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx,
			`DELETE FROM indicator_snapshots WHERE symbol = $1 AND timeframe = $2`,
			symbol, timeframe)
		if err != nil {
			return err
		}
		for _, s := range snaps {
			_, err := tx.Exec(ctxTx, `
INSERT INTO indicator_snapshots (ts, symbol, timeframe, keltner_upper, keltner_lower, rvi)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (ts, symbol, timeframe) DO UPDATE
SET keltner_upper = EXCLUDED.keltner_upper,
    keltner_lower = EXCLUDED.keltner_lower,
    rvi = EXCLUDED.rvi`,
				s.Timestamp.UTC(), s.Symbol, s.Timeframe,
				s.KeltnerUpper, s.KeltnerLower, s.RVI)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Snapshots) Range(ctx context.Context, symbol, timeframe string, from, to time.Time) (out []models.IndicatorSnapshot, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Snapshots.Range: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
SELECT ts, symbol, timeframe, keltner_upper, keltner_lower, rvi
FROM indicator_snapshots
WHERE symbol = $1 AND timeframe = $2 AND ts >= $3 AND ts <= $4
ORDER BY ts ASC`,
			symbol, timeframe, from.UTC(), to.UTC())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var s models.IndicatorSnapshot
			if err := rows.Scan(&s.Timestamp, &s.Symbol, &s.Timeframe,
				&s.KeltnerUpper, &s.KeltnerLower, &s.RVI); err != nil {
				return err
			}
			s.Timestamp = s.Timestamp.UTC()
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}
