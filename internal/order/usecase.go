package order

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
)

type UseCase interface {
	CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, id, merchantID string) (*model.Order, error)
	ListOrders(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error)
	UpdateOrder(ctx context.Context, input *dto.UpdateOrderInput) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Order, error)
	CancelOrder(ctx context.Context, id, merchantID string) (*model.Order, error)
	DeleteOrder(ctx context.Context, id, merchantID string) error
}

// StockEngine moves stock in and out of an order inside the caller's
// transaction.
type StockEngine interface {
	Validate(ctx context.Context, tx *sqlx.Tx, order *model.Order) error
	Reserve(ctx context.Context, tx *sqlx.Tx, order *model.Order) (*stock.Result, error)
	Release(ctx context.Context, tx *sqlx.Tx, order *model.Order) (*stock.Result, error)
	Replace(ctx context.Context, tx *sqlx.Tx, order *model.Order) (*stock.Result, error)
}

// Notifier is told about committed order changes. It never affects the
// outcome of the change.
type Notifier interface {
	OrderChanged(ctx context.Context, event *dto.OrderEvent) error
}

// Locker serializes operations on one order across service instances.
type Locker interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}
