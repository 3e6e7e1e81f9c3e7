package stock

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/costing"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/recipe"
	"github.com/fekuna/omnipos-stock-service/internal/unit"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-stock-service/internal/stock")

// Result reports the stock an operation handed back and took.
type Result struct {
	Released []model.StockReservation
	Reserved []model.StockReservation
}

// Engine moves physical stock in and out of orders. Every method runs inside
// the caller's transaction, and the caller is expected to hold the order row
// lock.
type Engine struct {
	items        inventory.Repository
	recipes      recipe.Repository
	reservations Repository
	logger       logger.ZapLogger
}

func NewEngine(items inventory.Repository, recipes recipe.Repository, reservations Repository, log logger.ZapLogger) *Engine {
	return &Engine{
		items:        items,
		recipes:      recipes,
		reservations: reservations,
		logger:       log,
	}
}

// Reserve deducts the requirement of every line of order, or nothing.
func (e *Engine) Reserve(ctx context.Context, tx *sqlx.Tx, order *model.Order) (*Result, error) {
	ctx, span := tracer.Start(ctx, "stock.Reserve")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", order.ID))
	return e.apply(ctx, tx, order, false, true)
}

// Release credits back exactly what the order holds. An order holding
// nothing is a no-op.
func (e *Engine) Release(ctx context.Context, tx *sqlx.Tx, order *model.Order) (*Result, error) {
	ctx, span := tracer.Start(ctx, "stock.Release")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", order.ID))
	return e.apply(ctx, tx, order, true, false)
}

// Replace releases the current reservation and reserves order's lines in one
// pass. The order's own holding counts as available.
func (e *Engine) Replace(ctx context.Context, tx *sqlx.Tx, order *model.Order) (*Result, error) {
	ctx, span := tracer.Start(ctx, "stock.Replace")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", order.ID))
	return e.apply(ctx, tx, order, true, true)
}

// Validate checks that every line resolves to a recipe of the order's
// merchant with measurable ingredients. Stock levels are not consulted.
func (e *Engine) Validate(ctx context.Context, tx *sqlx.Tx, order *model.Order) error {
	recipes, err := e.orderRecipes(ctx, tx, order)
	if err != nil {
		return err
	}
	var ids []string
	for _, rec := range recipes {
		ids = append(ids, rec.ItemIDs()...)
	}
	items, err := e.items.WithTx(tx).FindByIDs(ctx, dedupe(ids))
	if err != nil {
		return err
	}
	_, err = OrderRequirements(order.Lines, recipes, items)
	return err
}

func (e *Engine) apply(ctx context.Context, tx *sqlx.Tx, order *model.Order, release, reserve bool) (*Result, error) {
	items := e.items.WithTx(tx)
	store := e.reservations.WithTx(tx)
	res := &Result{}

	var err error
	if release {
		if res.Released, err = store.FindByOrder(ctx, order.ID); err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(res.Released))
	for _, r := range res.Released {
		ids = append(ids, r.ItemID)
	}

	var recipes map[string]*model.Recipe
	if reserve {
		if recipes, err = e.orderRecipes(ctx, tx, order); err != nil {
			return nil, err
		}
		for _, rec := range recipes {
			ids = append(ids, rec.ItemIDs()...)
		}
	}

	// one sorted lock pass over everything touched avoids lock-order cycles
	// between concurrent orders
	locked, err := items.LockByIDs(ctx, dedupe(ids))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	before := make(map[string]float64, len(locked))
	for id, item := range locked {
		before[id] = item.OnHandBaseUnits
	}
	var movements []*model.StockMovement

	for _, r := range res.Released {
		item, ok := locked[r.ItemID]
		if !ok {
			return nil, apperror.WithMetadata(apperror.CodeItemNotFound,
				"stocked item "+r.ItemID+" not found", map[string]string{"item_id": r.ItemID})
		}
		prev := item.OnHandBaseUnits
		item.OnHandBaseUnits = unit.Round(prev + r.BaseUnits)
		movements = append(movements, movement(order, item, model.MovementTypeRelease, r.BaseUnits, prev, now))
	}

	if reserve {
		req, err := OrderRequirements(order.Lines, recipes, locked)
		if err != nil {
			return nil, err
		}
		if err := costing.CheckAvailable(req, locked); err != nil {
			return nil, err
		}

		for _, id := range sortedKeys(req) {
			item := locked[id]
			prev := item.OnHandBaseUnits
			item.OnHandBaseUnits = unit.Round(prev - req[id])
			movements = append(movements, movement(order, item, model.MovementTypeReserve, -req[id], prev, now))
			res.Reserved = append(res.Reserved, model.StockReservation{
				OrderID:   order.ID,
				ItemID:    id,
				BaseUnits: req[id],
				CreatedAt: now,
			})
		}
	}

	for _, id := range sortedKeys(before) {
		item := locked[id]
		if item.OnHandBaseUnits == before[id] {
			continue
		}
		if err := item.CheckLedger(); err != nil {
			return nil, err
		}
		if err := items.UpdateOnHand(ctx, id, item.OnHandBaseUnits, now); err != nil {
			return nil, err
		}
	}
	for _, m := range movements {
		if err := items.LogMovement(ctx, m); err != nil {
			return nil, err
		}
	}

	if len(res.Released) > 0 {
		if err := store.DeleteByOrder(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	if len(res.Reserved) > 0 {
		if err := store.Save(ctx, res.Reserved); err != nil {
			return nil, err
		}
	}

	e.logger.Debug("Order stock applied",
		zap.String("order_id", order.ID),
		zap.Int("released", len(res.Released)),
		zap.Int("reserved", len(res.Reserved)),
	)
	return res, nil
}

// orderRecipes loads the recipes of order's lines. Recipes of another
// merchant are left out and resolve as missing.
func (e *Engine) orderRecipes(ctx context.Context, tx *sqlx.Tx, order *model.Order) (map[string]*model.Recipe, error) {
	recipes, err := e.recipes.WithTx(tx).FindByIDs(ctx, RecipeIDs(order.Lines))
	if err != nil {
		return nil, err
	}
	if order.MerchantID == "" {
		return recipes, nil
	}
	for id, rec := range recipes {
		if rec.MerchantID != order.MerchantID {
			delete(recipes, id)
		}
	}
	return recipes, nil
}

func movement(order *model.Order, item *model.StockedItem, kind string, change, before float64, at time.Time) *model.StockMovement {
	refType := model.ReferenceTypeOrder
	refID := order.ID
	return &model.StockMovement{
		ID:             uuid.New().String(),
		MerchantID:     item.MerchantID,
		ItemID:         item.ID,
		MovementType:   kind,
		QuantityChange: change,
		QuantityBefore: before,
		QuantityAfter:  item.OnHandBaseUnits,
		ReferenceType:  &refType,
		ReferenceID:    &refID,
		CreatedAt:      at,
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
