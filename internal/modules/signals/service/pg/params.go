package pg

import (
	"context"
	"fmt"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Params stores per-(symbol, timeframe) indicator configuration. Mutated
// only by explicit user edit.
type Params struct {
	db db.TxManager
}

func NewParams(txm db.TxManager) *Params {
	return &Params{db: txm}
}

func (r *Params) Upsert(ctx context.Context, p models.IndicatorParams) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Params.Upsert: %w", err)
		}
	}()

	if err := p.Validate(); err != nil {
		return err
	}

	return r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
INSERT INTO indicator_params (
    symbol, timeframe, keltner_period, keltner_upper_multiplier, keltner_lower_multiplier,
    rvi_period, rvi_upper_threshold, rvi_lower_threshold,
    rvi_15m_period, rvi_15m_upper_threshold, rvi_15m_lower_threshold, include_15m_rvi)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (symbol, timeframe) DO UPDATE
SET keltner_period = EXCLUDED.keltner_period,
    keltner_upper_multiplier = EXCLUDED.keltner_upper_multiplier,
    keltner_lower_multiplier = EXCLUDED.keltner_lower_multiplier,
    rvi_period = EXCLUDED.rvi_period,
    rvi_upper_threshold = EXCLUDED.rvi_upper_threshold,
    rvi_lower_threshold = EXCLUDED.rvi_lower_threshold,
    rvi_15m_period = EXCLUDED.rvi_15m_period,
    rvi_15m_upper_threshold = EXCLUDED.rvi_15m_upper_threshold,
    rvi_15m_lower_threshold = EXCLUDED.rvi_15m_lower_threshold,
    include_15m_rvi = EXCLUDED.include_15m_rvi`,
			p.Symbol, p.Timeframe, p.KeltnerPeriod,
			p.KeltnerUpperMultiplier, p.KeltnerLowerMultiplier,
			p.RVIPeriod, p.RVIUpperThreshold, p.RVILowerThreshold,
			p.RVI15mPeriod, p.RVI15mUpperThreshold, p.RVI15mLowerThreshold,
			p.Include15mRVI)
		return err
	})
}

// Get returns the stored params, falling back to defaults for an unseen pair.
func (r *Params) Get(ctx context.Context, symbol, timeframe string) (p models.IndicatorParams, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Params.Get: %w", err)
		}
	}()

	p = models.DefaultIndicatorParams(symbol, timeframe)
	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx, `
SELECT keltner_period, keltner_upper_multiplier, keltner_lower_multiplier,
       rvi_period, rvi_upper_threshold, rvi_lower_threshold,
       rvi_15m_period, rvi_15m_upper_threshold, rvi_15m_lower_threshold, include_15m_rvi
FROM indicator_params WHERE symbol = $1 AND timeframe = $2`,
			symbol, timeframe)

		scanErr := row.Scan(&p.KeltnerPeriod,
			&p.KeltnerUpperMultiplier, &p.KeltnerLowerMultiplier,
			&p.RVIPeriod, &p.RVIUpperThreshold, &p.RVILowerThreshold,
			&p.RVI15mPeriod, &p.RVI15mUpperThreshold, &p.RVI15mLowerThreshold,
			&p.Include15mRVI)
		if scanErr == pgx.ErrNoRows {
			return nil
		}
		return scanErr
	})
	return p, err
}
