package stock

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-stock-service/internal/model"
)

// Repository persists what each active order holds, so a release credits
// exactly what was deducted.
type Repository interface {
	WithTx(tx *sqlx.Tx) Repository

	Save(ctx context.Context, reservations []model.StockReservation) error
	FindByOrder(ctx context.Context, orderID string) ([]model.StockReservation, error)
	DeleteByOrder(ctx context.Context, orderID string) error
}
