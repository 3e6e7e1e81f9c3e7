package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/database"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-stock-service/internal/order")

const (
	orderLockTTL   = 10 * time.Second
	lockAttempts   = 3
	lockRetryDelay = 20 * time.Millisecond
	notifyTimeout  = 3 * time.Second
)

var errLockHeld = errors.New("order lock held")

type orderUseCase struct {
	repo     order.Repository
	engine   order.StockEngine
	txm      *database.TxManager
	locker   order.Locker
	notifier order.Notifier
	logger   logger.ZapLogger
}

// NewOrderUseCase wires the order lifecycle. locker and notifier are optional.
func NewOrderUseCase(repo order.Repository, engine order.StockEngine, txm *database.TxManager, locker order.Locker, notifier order.Notifier, log logger.ZapLogger) order.UseCase {
	return &orderUseCase{
		repo:     repo,
		engine:   engine,
		txm:      txm,
		locker:   locker,
		notifier: notifier,
		logger:   log,
	}
}

func (uc *orderUseCase) CreateOrder(ctx context.Context, input *dto.CreateOrderInput) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "order.CreateOrder")
	defer span.End()

	status := model.OrderStatusPending
	if input.Status != "" {
		s, err := parseStatus(input.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}
	if status == model.OrderStatusCancelled {
		return nil, apperror.New(apperror.CodeInvalidTransition, "an order cannot be created cancelled")
	}

	now := time.Now().UTC()
	o := &model.Order{
		BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		MerchantID:   input.MerchantID,
		CustomerName: strings.TrimSpace(input.CustomerName),
		Status:       status,
	}
	lines, err := buildLines(o.ID, input.Lines)
	if err != nil {
		return nil, err
	}
	o.Lines = lines
	o.TotalAmount = model.LinesTotal(lines)
	span.SetAttributes(attribute.String("order_id", o.ID), attribute.String("status", string(status)))

	err = uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		o.StockReserved = false
		if err := uc.engine.Validate(ctx, tx, o); err != nil {
			return err
		}
		if err := uc.repo.WithTx(tx).Create(ctx, o); err != nil {
			return err
		}
		if !status.IsActive() {
			return nil
		}
		if _, err := uc.engine.Reserve(ctx, tx, o); err != nil {
			return err
		}
		o.StockReserved = true
		return uc.repo.WithTx(tx).Update(ctx, o)
	})
	if err != nil {
		uc.logFailure("create order", o.ID, err)
		return nil, err
	}

	uc.logger.Info("Order created",
		zap.String("order_id", o.ID),
		zap.String("status", string(o.Status)),
		zap.Bool("stock_reserved", o.StockReserved),
	)
	uc.notify(ctx, dto.EventOrderCreated, o)
	return o, nil
}

// GetOrder loads an order. A non-empty merchantID hides other merchants'
// orders.
func (uc *orderUseCase) GetOrder(ctx context.Context, id, merchantID string) (*model.Order, error) {
	o, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil || (merchantID != "" && o.MerchantID != merchantID) {
		return nil, orderNotFound(id)
	}
	return o, nil
}

func (uc *orderUseCase) ListOrders(ctx context.Context, filters *dto.OrderFilters) ([]model.Order, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

func (uc *orderUseCase) UpdateOrder(ctx context.Context, input *dto.UpdateOrderInput) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "order.UpdateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", input.ID))

	var target *model.OrderStatus
	if input.Status != nil {
		s, err := parseStatus(*input.Status)
		if err != nil {
			return nil, err
		}
		target = &s
	}
	var lines []model.OrderLine
	if input.Lines != nil {
		built, err := buildLines(input.ID, input.Lines)
		if err != nil {
			return nil, err
		}
		lines = built
	}

	return uc.mutate(ctx, input.ID, input.MerchantID, dto.EventOrderUpdated, func(o *model.Order) (bool, error) {
		changed := false
		if input.CustomerName != nil {
			o.CustomerName = strings.TrimSpace(*input.CustomerName)
			changed = true
		}
		if lines != nil {
			o.Lines = lines
			o.TotalAmount = model.LinesTotal(lines)
			changed = true
		}
		if target != nil && *target != o.Status {
			o.Status = *target
			changed = true
		}
		return changed, nil
	}, lines != nil)
}

func (uc *orderUseCase) UpdateOrderStatus(ctx context.Context, input *dto.UpdateStatusInput) (*model.Order, error) {
	ctx, span := tracer.Start(ctx, "order.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", input.ID), attribute.String("status", input.Status))

	target, err := parseStatus(input.Status)
	if err != nil {
		return nil, err
	}
	return uc.mutate(ctx, input.ID, input.MerchantID, dto.EventOrderStatusChanged, func(o *model.Order) (bool, error) {
		if o.Status == target {
			return false, nil
		}
		o.Status = target
		return true, nil
	}, false)
}

func (uc *orderUseCase) CancelOrder(ctx context.Context, id, merchantID string) (*model.Order, error) {
	return uc.UpdateOrderStatus(ctx, &dto.UpdateStatusInput{ID: id, MerchantID: merchantID, Status: string(model.OrderStatusCancelled)})
}

func (uc *orderUseCase) DeleteOrder(ctx context.Context, id, merchantID string) error {
	ctx, span := tracer.Start(ctx, "order.DeleteOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", id))

	unlock, err := uc.lockOrder(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	var deleted *model.Order
	err = uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		o, err := repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if o == nil || (merchantID != "" && o.MerchantID != merchantID) {
			return orderNotFound(id)
		}
		if o.StockReserved {
			if _, err := uc.engine.Release(ctx, tx, o); err != nil {
				return err
			}
			o.StockReserved = false
		}
		deleted = o
		return repo.Delete(ctx, id)
	})
	if err != nil {
		uc.logFailure("delete order", id, err)
		return err
	}

	uc.logger.Info("Order deleted", zap.String("order_id", id))
	uc.notify(ctx, dto.EventOrderDeleted, deleted)
	return nil
}

// mutate applies edit to the locked order and settles its stock: entering
// the active set reserves, leaving it releases, and a line change while
// active swaps the reservation. All of it commits or none of it does.
func (uc *orderUseCase) mutate(ctx context.Context, id, merchantID, event string, edit func(o *model.Order) (bool, error), linesChanged bool) (*model.Order, error) {
	unlock, err := uc.lockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var result *model.Order
	changed := false
	err = uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		o, err := repo.LockByID(ctx, id)
		if err != nil {
			return err
		}
		if o == nil || (merchantID != "" && o.MerchantID != merchantID) {
			return orderNotFound(id)
		}
		from := o.Status

		changed, err = edit(o)
		if err != nil {
			return err
		}
		result = o
		if !changed {
			return nil
		}
		if err := checkTransition(from, o.Status); err != nil {
			return err
		}
		if linesChanged {
			if err := uc.engine.Validate(ctx, tx, o); err != nil {
				return err
			}
		}

		wantReserved := o.Status.IsActive()
		switch {
		case !o.StockReserved && wantReserved:
			_, err = uc.engine.Reserve(ctx, tx, o)
		case o.StockReserved && !wantReserved:
			_, err = uc.engine.Release(ctx, tx, o)
		case o.StockReserved && linesChanged:
			_, err = uc.engine.Replace(ctx, tx, o)
		}
		if err != nil {
			return err
		}
		o.StockReserved = wantReserved
		o.UpdatedAt = time.Now().UTC()

		if linesChanged {
			if err := repo.ReplaceLines(ctx, o.ID, o.Lines); err != nil {
				return err
			}
		}
		return repo.Update(ctx, o)
	})
	if err != nil {
		uc.logFailure("update order", id, err)
		return nil, err
	}
	if !changed {
		return result, nil
	}

	uc.logger.Info("Order updated",
		zap.String("order_id", result.ID),
		zap.String("status", string(result.Status)),
		zap.Bool("stock_reserved", result.StockReserved),
	)
	uc.notify(ctx, event, result)
	return result, nil
}

// checkTransition enforces PENDING → {ONGOING, COMPLETED} → CANCELLED.
// CANCELLED is terminal and an active order cannot go back to PENDING.
func checkTransition(from, to model.OrderStatus) error {
	if from == model.OrderStatusCancelled {
		return apperror.WithMetadata(apperror.CodeInvalidTransition,
			"cancelled orders cannot change", map[string]string{"from": string(from), "to": string(to)})
	}
	if from.IsActive() && to == model.OrderStatusPending {
		return apperror.WithMetadata(apperror.CodeInvalidTransition,
			"an active order cannot return to pending", map[string]string{"from": string(from), "to": string(to)})
	}
	return nil
}

// lockOrder takes the cross-instance order lock, retrying a held lock a
// bounded number of times. The row lock inside the transaction stays
// authoritative, so a lock store outage only logs.
func (uc *orderUseCase) lockOrder(ctx context.Context, id string) (func(), error) {
	if uc.locker == nil {
		return func() {}, nil
	}
	key := "lock:order:" + id
	token := uuid.New().String()

	op := func() (struct{}, error) {
		ok, err := uc.locker.AcquireLock(ctx, key, token, orderLockTTL)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if !ok {
			return struct{}{}, errLockHeld
		}
		return struct{}{}, nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = lockRetryDelay
	b.MaxInterval = 10 * lockRetryDelay

	_, err := backoff.Retry(ctx, op, backoff.WithBackOff(b), backoff.WithMaxTries(lockAttempts))
	switch {
	case err == nil:
	case errors.Is(err, errLockHeld):
		return nil, apperror.WithMetadata(apperror.CodeConcurrencyConflict,
			"order "+id+" is being modified", map[string]string{"order_id": id})
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		uc.logger.Warn("order lock unavailable", zap.String("order_id", id), zap.Error(err))
		return func() {}, nil
	}
	return func() {
		if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), key, token); err != nil {
			uc.logger.Warn("failed to release order lock", zap.String("order_id", id), zap.Error(err))
		}
	}, nil
}

func (uc *orderUseCase) notify(ctx context.Context, event string, o *model.Order) {
	if uc.notifier == nil || o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := uc.notifier.OrderChanged(ctx, &dto.OrderEvent{
		EventID:       uuid.New().String(),
		EventType:     event,
		OrderID:       o.ID,
		MerchantID:    o.MerchantID,
		Status:        string(o.Status),
		StockReserved: o.StockReserved,
		TotalAmount:   o.TotalAmount.String(),
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		uc.logger.Warn("failed to publish order event", zap.String("order_id", o.ID), zap.String("event_type", event), zap.Error(err))
	}
}

func (uc *orderUseCase) logFailure(op, id string, err error) {
	switch apperror.CodeOf(err) {
	case apperror.CodeInternal:
		uc.logger.Error("failed to "+op, zap.String("order_id", id), zap.Error(err))
	default:
		uc.logger.Warn("rejected "+op, zap.String("order_id", id), zap.Error(err))
	}
}

func parseStatus(s string) (model.OrderStatus, error) {
	status := model.OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", apperror.WithMetadata(apperror.CodeInvalidArgument, "unknown order status "+s, map[string]string{"status": s})
	}
	return status, nil
}

func buildLines(orderID string, inputs []dto.LineInput) ([]model.OrderLine, error) {
	lines := make([]model.OrderLine, 0, len(inputs))
	for i, in := range inputs {
		if in.RecipeID == "" {
			return nil, apperror.New(apperror.CodeInvalidArgument, "order line recipe id is required")
		}
		if in.Quantity <= 0 {
			return nil, apperror.WithMetadata(apperror.CodeInvalidQuantity,
				"order line quantity must be positive", map[string]string{"recipe_id": in.RecipeID})
		}
		if in.SellingPrice.IsNegative() {
			return nil, apperror.WithMetadata(apperror.CodeInvalidQuantity,
				"selling price cannot be negative", map[string]string{"recipe_id": in.RecipeID})
		}
		lines = append(lines, model.OrderLine{
			ID:           uuid.New().String(),
			OrderID:      orderID,
			RecipeID:     in.RecipeID,
			Position:     i,
			Quantity:     in.Quantity,
			SellingPrice: in.SellingPrice,
		})
	}
	return lines, nil
}

func orderNotFound(id string) error {
	return apperror.WithMetadata(apperror.CodeOrderNotFound, "order "+id+" not found", map[string]string{"order_id": id})
}
