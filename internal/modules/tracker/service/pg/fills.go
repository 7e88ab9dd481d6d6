package pg

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

// Fills is append-only: rows are never updated or deleted, the portfolio
// view is rebuilt from them.
type Fills struct {
	db db.TxManager
}

func NewFills(txm db.TxManager) *Fills {
	return &Fills{db: txm}
}

func (r *Fills) Insert(ctx context.Context, f models.Fill) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Fills.Insert: %w", err)
		}
	}()

	return r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
INSERT INTO fills (order_id, symbol, side, filled_quantity, filled_price, filled_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			f.OrderID, f.Symbol, string(f.Side),
			f.FilledQuantity, f.FilledPrice, f.FilledAt.UTC())
		return err
	})
}

// BySymbol returns all fills for a symbol in execution order.
func (r *Fills) BySymbol(ctx context.Context, symbol string) (out []models.Fill, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Fills.BySymbol: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
SELECT order_id, symbol, side, filled_quantity, filled_price, filled_at
FROM fills
WHERE symbol = $1
ORDER BY filled_at ASC, id ASC`,
			symbol)
		if err != nil {
			return err
		}
		defer rows.Close()
		return scanFills(rows, &out)
	})
	return out, err
}

// All returns every fill in execution order, for the full portfolio view.
func (r *Fills) All(ctx context.Context) (out []models.Fill, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Fills.All: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
SELECT order_id, symbol, side, filled_quantity, filled_price, filled_at
FROM fills
ORDER BY filled_at ASC, id ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()
		return scanFills(rows, &out)
	})
	return out, err
}

func scanFills(rows pgx.Rows, out *[]models.Fill) error {
	for rows.Next() {
		var (
			f    models.Fill
			side string
			at   time.Time
		)
		if err := rows.Scan(&f.OrderID, &f.Symbol, &side,
			&f.FilledQuantity, &f.FilledPrice, &at); err != nil {
			return err
		}
		f.Side = models.Side(side)
		f.FilledAt = at.UTC()
		*out = append(*out, f)
	}
	return rows.Err()
}
