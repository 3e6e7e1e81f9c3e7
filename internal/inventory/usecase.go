package inventory

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type UseCase interface {
	CreateItem(ctx context.Context, input *dto.CreateItemInput) (*model.StockedItem, error)
	GetItem(ctx context.Context, id, merchantID string) (*model.StockedItem, error)
	ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.StockedItem, int, error)
	ListLowStock(ctx context.Context, merchantID string, page, pageSize int) ([]model.StockedItem, int, error)
	AverageCost(ctx context.Context, id, merchantID string) (decimal.Decimal, error)
	Restock(ctx context.Context, input *dto.RestockInput) (*dto.RestockResult, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}

// CostCascader refreshes the cached cost of every recipe that uses an item.
// RecostForItem runs inside the restock transaction; AfterCascade runs once
// the transaction has committed.
type CostCascader interface {
	RecostForItem(ctx context.Context, tx *sqlx.Tx, itemID string) ([]model.Recipe, error)
	AfterCascade(ctx context.Context, recipes []model.Recipe)
}

// Locker guards idempotency keys.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}
