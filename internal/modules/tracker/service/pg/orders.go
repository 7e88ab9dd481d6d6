package pg

import (
	"context"
	"fmt"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/jackc/pgx/v5"
)

type Orders struct {
	db db.TxManager
}

func NewOrders(txm db.TxManager) *Orders {
	return &Orders{db: txm}
}

func (r *Orders) Insert(ctx context.Context, o *models.Order) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.Insert: %w", err)
		}
	}()

	return r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
INSERT INTO orders (id, client_id, symbol, side, type, requested_quantity, requested_price, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			o.ID, o.ClientID, o.Symbol, string(o.Side), string(o.Type),
			o.RequestedQuantity, o.RequestedPrice, string(o.Status),
			o.CreatedAt.UTC(), o.UpdatedAt.UTC())
		return err
	})
}

func (r *Orders) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus, at time.Time) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.UpdateStatus: %w", err)
		}
	}()

	return r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		ct, err := tx.Exec(ctxTx,
			`UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`,
			string(status), at.UTC(), orderID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return fmt.Errorf("order %s not found", orderID)
		}
		return nil
	})
}

// Open returns orders still awaiting a terminal state, oldest first. Used on
// startup to resume tracking after a restart.
func (r *Orders) Open(ctx context.Context) (out []models.Order, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.Orders.Open: %w", err)
		}
	}()

	err = r.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `
SELECT id, client_id, symbol, side, type, requested_quantity, requested_price, status, created_at, updated_at
FROM orders
WHERE status NOT IN ('FILLED', 'CANCELED', 'REJECTED')
ORDER BY created_at ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				o                 models.Order
				side, typ, status string
			)
			if err := rows.Scan(&o.ID, &o.ClientID, &o.Symbol, &side, &typ,
				&o.RequestedQuantity, &o.RequestedPrice, &status,
				&o.CreatedAt, &o.UpdatedAt); err != nil {
				return err
			}
			o.Side = models.Side(side)
			o.Type = models.OrderType(typ)
			o.Status = models.OrderStatus(status)
			o.CreatedAt = o.CreatedAt.UTC()
			o.UpdatedAt = o.UpdatedAt.UTC()
			out = append(out, o)
		}
		return rows.Err()
	})
	return out, err
}
