package order

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
)

type Repository interface {
	WithTx(tx *sqlx.Tx) Repository

	// Create persists the order header and its lines.
	Create(ctx context.Context, order *model.Order) error
	// Update writes the header fields; ReplaceLines swaps the line set.
	Update(ctx context.Context, order *model.Order) error
	ReplaceLines(ctx context.Context, orderID string, lines []model.OrderLine) error
	Delete(ctx context.Context, id string) error

	FindByID(ctx context.Context, id string) (*model.Order, error)
	FindAll(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error)

	// LockByID row-locks the order and loads its lines. Returns nil when
	// the order does not exist.
	LockByID(ctx context.Context, id string) (*model.Order, error)
}
