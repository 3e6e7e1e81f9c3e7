package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type Repository interface {
	// WithTx returns a repository bound to tx.
	WithTx(tx *sqlx.Tx) Repository

	// Stocked items
	Create(ctx context.Context, item *model.StockedItem) error
	FindByID(ctx context.Context, id string) (*model.StockedItem, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.StockedItem, error)
	FindAll(ctx context.Context, filters *dto.ItemFilters) ([]model.StockedItem, int, error)

	// LockByIDs loads and row-locks items in ascending id order.
	LockByIDs(ctx context.Context, ids []string) (map[string]*model.StockedItem, error)

	// Ledger writes
	UpdateLedger(ctx context.Context, item *model.StockedItem) error
	UpdateOnHand(ctx context.Context, id string, onHand float64, at time.Time) error

	// Movements / Audit
	LogMovement(ctx context.Context, movement *model.StockMovement) error
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
