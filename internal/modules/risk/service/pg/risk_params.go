package pg

import (
	"context"
	"fmt"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// RiskParams stores per-symbol risk configuration.
type RiskParams struct {
	db db.TxManager
}

func NewRiskParams(txm db.TxManager) *RiskParams {
	return &RiskParams{db: txm}
}

func (r *RiskParams) Upsert(ctx context.Context, p models.RiskParams) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.RiskParams.Upsert: %w", err)
		}
	}()

	if err := p.Validate(); err != nil {
		return err
	}

	return r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
INSERT INTO portfolio_risk_parameters (symbol, stoploss, position_size, max_allocation, partial_sell_fraction)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (symbol) DO UPDATE
SET stoploss = EXCLUDED.stoploss,
    position_size = EXCLUDED.position_size,
    max_allocation = EXCLUDED.max_allocation,
    partial_sell_fraction = EXCLUDED.partial_sell_fraction`,
			p.Symbol, p.Stoploss, p.PositionSize, p.MaxAllocation, p.PartialSellFraction)
		return err
	})
}

// Get returns the stored params, defaults for an unseen symbol.
func (r *RiskParams) Get(ctx context.Context, symbol string) (p models.RiskParams, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.RiskParams.Get: %w", err)
		}
	}()

	p = models.DefaultRiskParams(symbol)
	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx, `
SELECT stoploss, position_size, max_allocation, partial_sell_fraction
FROM portfolio_risk_parameters WHERE symbol = $1`,
			symbol)

		scanErr := row.Scan(&p.Stoploss, &p.PositionSize, &p.MaxAllocation, &p.PartialSellFraction)
		if scanErr == pgx.ErrNoRows {
			return nil
		}
		return scanErr
	})
	return p, err
}
