package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
)

type PGRepository struct {
	DB sqlx.ExtContext
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) WithTx(tx *sqlx.Tx) stock.Repository {
	return &PGRepository{DB: tx}
}

func (r *PGRepository) Save(ctx context.Context, reservations []model.StockReservation) error {
	query := `
        INSERT INTO order_reservations (order_id, item_id, base_units, created_at)
        VALUES (:order_id, :item_id, :base_units, :created_at)
    `
	for i := range reservations {
		if _, err := sqlx.NamedExecContext(ctx, r.DB, query, &reservations[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGRepository) FindByOrder(ctx context.Context, orderID string) ([]model.StockReservation, error) {
	var out []model.StockReservation
	err := sqlx.SelectContext(ctx, r.DB, &out,
		r.DB.Rebind(`SELECT * FROM order_reservations WHERE order_id = ? ORDER BY item_id`), orderID)
	return out, err
}

func (r *PGRepository) DeleteByOrder(ctx context.Context, orderID string) error {
	_, err := r.DB.ExecContext(ctx, r.DB.Rebind(`DELETE FROM order_reservations WHERE order_id = ?`), orderID)
	return err
}
