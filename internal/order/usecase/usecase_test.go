package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	invdto "github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	invrepo "github.com/fekuna/omnipos-stock-service/internal/inventory/repository"
	invuc "github.com/fekuna/omnipos-stock-service/internal/inventory/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/internal/order/repository"
	recipedto "github.com/fekuna/omnipos-stock-service/internal/recipe/dto"
	reciperepo "github.com/fekuna/omnipos-stock-service/internal/recipe/repository"
	recipeuc "github.com/fekuna/omnipos-stock-service/internal/recipe/usecase"
	"github.com/fekuna/omnipos-stock-service/internal/stock"
	stockrepo "github.com/fekuna/omnipos-stock-service/internal/stock/repository"
	"github.com/fekuna/omnipos-stock-service/pkg/database/dbtest"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []dto.OrderEvent
	err    error
}

func (n *recordingNotifier) OrderChanged(ctx context.Context, e *dto.OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, *e)
	return n.err
}

type memLocker struct {
	mu       sync.Mutex
	held     map[string]string
	refusals int
	// freeAfter drops a held key once it has been refused this many times.
	freeAfter int
}

func (l *memLocker) AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]string{}
	}
	if _, ok := l.held[key]; ok {
		l.refusals++
		if l.freeAfter > 0 && l.refusals == l.freeAfter {
			delete(l.held, key)
		}
		return false, nil
	}
	l.held[key] = value
	return true, nil
}

func (l *memLocker) ReleaseLock(ctx context.Context, key, value string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == value {
		delete(l.held, key)
	}
	return nil
}

type fixture struct {
	orders   order.UseCase
	inv      inventory.UseCase
	notifier *recordingNotifier
	locker   *memLocker
	flour    string
	bread    string
}

// newFixture stocks 10 kg of Flour and a Bread recipe using 200 g of it.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := dbtest.Open(t)
	txm := dbtest.TxManager(db)
	items := invrepo.NewPGRepository(db)
	recipeRepo := reciperepo.NewPGRepository(db)

	recipes := recipeuc.NewRecipeUseCase(recipeRepo, items, txm, nil, nil, logger.NewNop())
	engine := stock.NewEngine(items, recipeRepo, stockrepo.NewPGRepository(db), logger.NewNop())

	f := &fixture{
		inv:      invuc.NewInventoryUseCase(items, txm, recipes, nil, logger.NewNop()),
		notifier: &recordingNotifier{},
		locker:   &memLocker{},
	}
	f.orders = NewOrderUseCase(repository.NewPGRepository(db), engine, txm, f.locker, f.notifier, logger.NewNop())

	flour, err := f.inv.CreateItem(ctx, &invdto.CreateItemInput{MerchantID: "m1", Name: "Flour", ItemClass: "CONSUMABLE", Unit: "KGS", PackWeight: 1})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if _, err := f.inv.Restock(ctx, &invdto.RestockInput{ItemID: flour.ID, AddedPacks: 10, AddedCost: decimal.NewFromInt(500)}); err != nil {
		t.Fatalf("Restock: %v", err)
	}
	bread, err := recipes.CreateRecipe(ctx, &recipedto.CreateRecipeInput{
		MerchantID: "m1", Name: "Bread", MakingCharge: decimal.NewFromInt(10),
		Ingredients: []recipedto.IngredientInput{{ItemID: flour.ID, QuantityNeeded: 200, Unit: "GRAMS"}},
	})
	if err != nil {
		t.Fatalf("CreateRecipe: %v", err)
	}
	f.flour, f.bread = flour.ID, bread.ID
	return f
}

func (f *fixture) onHand(t *testing.T) float64 {
	t.Helper()
	item, err := f.inv.GetItem(context.Background(), f.flour, "")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	return item.OnHandBaseUnits
}

func (f *fixture) create(t *testing.T, status string, qty int64) *model.Order {
	t.Helper()
	o, err := f.orders.CreateOrder(context.Background(), &dto.CreateOrderInput{
		MerchantID: "m1",
		Status:     status,
		Lines:      []dto.LineInput{{RecipeID: f.bread, Quantity: qty, SellingPrice: decimal.NewFromInt(35)}},
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	return o
}

func (f *fixture) setStatus(id, status string) (*model.Order, error) {
	return f.orders.UpdateOrderStatus(context.Background(), &dto.UpdateStatusInput{ID: id, MerchantID: "m1", Status: status})
}

func TestCreatePendingOrderHoldsNoStock(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 4)

	if o.Status != model.OrderStatusPending || o.StockReserved {
		t.Fatalf("unexpected order %+v", o)
	}
	if !o.TotalAmount.Equal(decimal.NewFromInt(140)) {
		t.Fatalf("expected total 140, got %s", o.TotalAmount)
	}
	if f.onHand(t) != 10000 {
		t.Fatalf("pending order touched stock")
	}
	if len(f.notifier.events) != 1 || f.notifier.events[0].EventType != dto.EventOrderCreated {
		t.Fatalf("unexpected events %+v", f.notifier.events)
	}
}

func TestCreateActiveOrderReserves(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "ongoing", 10)

	if !o.StockReserved || f.onHand(t) != 8000 {
		t.Fatalf("expected reservation, order %+v on hand %v", o, f.onHand(t))
	}
	stored, err := f.orders.GetOrder(context.Background(), o.ID, "")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if !stored.StockReserved || len(stored.Lines) != 1 || stored.Lines[0].Quantity != 10 {
		t.Fatalf("unexpected stored order %+v", stored)
	}
}

func TestCreateOrderFlourShortage(t *testing.T) {
	f := newFixture(t)

	_, err := f.orders.CreateOrder(context.Background(), &dto.CreateOrderInput{
		MerchantID: "m1",
		Status:     "ONGOING",
		Lines:      []dto.LineInput{{RecipeID: f.bread, Quantity: 60}},
	})
	var shortage *apperror.InsufficientStockError
	if !errors.As(err, &shortage) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if shortage.ItemName != "Flour" || shortage.Needed != 12000 || shortage.Available != 10000 {
		t.Fatalf("unexpected shortage %+v", shortage)
	}
	if f.onHand(t) != 10000 {
		t.Fatalf("stock mutated")
	}
	if _, total, _ := f.orders.ListOrders(context.Background(), &dto.OrderFilters{MerchantID: "m1"}); total != 0 {
		t.Fatalf("rejected order persisted")
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("rejected order notified")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input dto.CreateOrderInput
		want  error
	}{
		{"unknown recipe", dto.CreateOrderInput{MerchantID: "m1", Lines: []dto.LineInput{{RecipeID: "ghost", Quantity: 1}}}, apperror.ErrRecipeNotFound},
		{"other merchant", dto.CreateOrderInput{MerchantID: "m2", Lines: []dto.LineInput{{RecipeID: f.bread, Quantity: 1}}}, apperror.ErrRecipeNotFound},
		{"zero quantity", dto.CreateOrderInput{MerchantID: "m1", Lines: []dto.LineInput{{RecipeID: f.bread}}}, apperror.ErrInvalidQuantity},
		{"negative price", dto.CreateOrderInput{MerchantID: "m1", Lines: []dto.LineInput{{RecipeID: f.bread, Quantity: 1, SellingPrice: decimal.NewFromInt(-1)}}}, apperror.ErrInvalidQuantity},
		{"unknown status", dto.CreateOrderInput{MerchantID: "m1", Status: "SHIPPED"}, apperror.ErrInvalidArgument},
		{"born cancelled", dto.CreateOrderInput{MerchantID: "m1", Status: "CANCELLED"}, apperror.ErrInvalidTransition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			if _, err := f.orders.CreateOrder(ctx, &input); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStatusLifecycle(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 10)

	got, err := f.setStatus(o.ID, "ONGOING")
	if err != nil || !got.StockReserved || f.onHand(t) != 8000 {
		t.Fatalf("activate: %+v, %v, on hand %v", got, err, f.onHand(t))
	}

	// active to active has no stock effect
	if _, err := f.setStatus(o.ID, "COMPLETED"); err != nil || f.onHand(t) != 8000 {
		t.Fatalf("complete: %v, on hand %v", err, f.onHand(t))
	}

	if _, err := f.setStatus(o.ID, "PENDING"); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition, got %v", err)
	}

	got, err = f.orders.CancelOrder(context.Background(), o.ID, "m1")
	if err != nil || got.StockReserved || f.onHand(t) != 10000 {
		t.Fatalf("cancel: %+v, %v, on hand %v", got, err, f.onHand(t))
	}

	// repeated cancellation is a no-op and never double credits
	if _, err := f.orders.CancelOrder(context.Background(), o.ID, "m1"); err != nil || f.onHand(t) != 10000 {
		t.Fatalf("second cancel: %v, on hand %v", err, f.onHand(t))
	}

	if _, err := f.setStatus(o.ID, "ONGOING"); !errors.Is(err, apperror.ErrInvalidTransition) {
		t.Fatalf("expected InvalidTransition out of CANCELLED, got %v", err)
	}
}

func TestCancelPendingOrder(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 10)

	got, err := f.orders.CancelOrder(context.Background(), o.ID, "m1")
	if err != nil || got.Status != model.OrderStatusCancelled || f.onHand(t) != 10000 {
		t.Fatalf("cancel pending: %+v, %v", got, err)
	}
}

func TestDeleteActiveOrderReleases(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "COMPLETED", 25)
	if f.onHand(t) != 5000 {
		t.Fatalf("on hand %v", f.onHand(t))
	}

	if err := f.orders.DeleteOrder(context.Background(), o.ID, "m1"); err != nil {
		t.Fatalf("DeleteOrder: %v", err)
	}
	if f.onHand(t) != 10000 {
		t.Fatalf("delete did not release, on hand %v", f.onHand(t))
	}
	if _, err := f.orders.GetOrder(context.Background(), o.ID, ""); !errors.Is(err, apperror.ErrOrderNotFound) {
		t.Fatalf("expected OrderNotFound, got %v", err)
	}
	if err := f.orders.DeleteOrder(context.Background(), o.ID, "m1"); !errors.Is(err, apperror.ErrOrderNotFound) {
		t.Fatalf("expected OrderNotFound on second delete, got %v", err)
	}
}

func TestUpdateActiveLinesSwapsReservation(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "ONGOING", 10)

	got, err := f.orders.UpdateOrder(context.Background(), &dto.UpdateOrderInput{
		ID:         o.ID,
		MerchantID: "m1",
		Lines:      []dto.LineInput{{RecipeID: f.bread, Quantity: 45, SellingPrice: decimal.NewFromInt(30)}},
	})
	if err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if f.onHand(t) != 1000 {
		t.Fatalf("expected 1000 on hand, got %v", f.onHand(t))
	}
	if !got.TotalAmount.Equal(decimal.NewFromInt(1350)) {
		t.Fatalf("expected total 1350, got %s", got.TotalAmount)
	}
}

func TestUpdateActiveLinesFailureKeepsReservation(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "ONGOING", 10)

	_, err := f.orders.UpdateOrder(context.Background(), &dto.UpdateOrderInput{
		ID:         o.ID,
		MerchantID: "m1",
		Lines:      []dto.LineInput{{RecipeID: f.bread, Quantity: 60}},
	})
	if !errors.Is(err, apperror.ErrInsufficientStock) {
		t.Fatalf("expected InsufficientStock, got %v", err)
	}
	if f.onHand(t) != 8000 {
		t.Fatalf("original reservation lost, on hand %v", f.onHand(t))
	}
	stored, _ := f.orders.GetOrder(context.Background(), o.ID, "")
	if stored.Lines[0].Quantity != 10 || !stored.StockReserved {
		t.Fatalf("order changed on failure: %+v", stored)
	}
}

func TestUpdateToActiveWithNewLines(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 1)

	status := "ONGOING"
	if _, err := f.orders.UpdateOrder(context.Background(), &dto.UpdateOrderInput{
		ID:         o.ID,
		MerchantID: "m1",
		Status:     &status,
		Lines:      []dto.LineInput{{RecipeID: f.bread, Quantity: 5}},
	}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	if f.onHand(t) != 9000 {
		t.Fatalf("expected the new lines reserved, on hand %v", f.onHand(t))
	}
}

func TestOrderOfOtherMerchantIsNotFound(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 1)

	if _, err := f.orders.UpdateOrderStatus(context.Background(), &dto.UpdateStatusInput{ID: o.ID, MerchantID: "m2", Status: "ONGOING"}); !errors.Is(err, apperror.ErrOrderNotFound) {
		t.Fatalf("expected OrderNotFound, got %v", err)
	}
}

func TestHeldOrderLockIsConflict(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 1)
	f.locker.AcquireLock(context.Background(), "lock:order:"+o.ID, "other", time.Minute)

	_, err := f.setStatus(o.ID, "ONGOING")
	if !apperror.IsRetryable(err) {
		t.Fatalf("expected ConcurrencyConflict, got %v", err)
	}
	if f.locker.refusals != lockAttempts {
		t.Fatalf("expected %d lock attempts, got %d", lockAttempts, f.locker.refusals)
	}
}

func TestOrderLockReleasedBetweenAttempts(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 1)
	f.locker.AcquireLock(context.Background(), "lock:order:"+o.ID, "other", time.Minute)
	f.locker.freeAfter = 1

	updated, err := f.setStatus(o.ID, "ONGOING")
	if err != nil {
		t.Fatalf("expected the retry to win the lock, got %v", err)
	}
	if updated.Status != model.OrderStatusOngoing || !updated.StockReserved {
		t.Fatalf("unexpected order %+v", updated)
	}
	if len(f.locker.held) != 0 {
		t.Fatalf("lock not released: %v", f.locker.held)
	}
}

func TestGetOrderIsScopedToMerchant(t *testing.T) {
	f := newFixture(t)
	o := f.create(t, "", 1)

	if _, err := f.orders.GetOrder(context.Background(), o.ID, "m2"); !errors.Is(err, apperror.ErrOrderNotFound) {
		t.Fatalf("expected OrderNotFound for another merchant, got %v", err)
	}
	if _, err := f.orders.GetOrder(context.Background(), o.ID, "m1"); err != nil {
		t.Fatalf("owner GetOrder: %v", err)
	}
}

func TestNotifierFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	o := f.create(t, "ONGOING", 1)
	if !o.StockReserved {
		t.Fatalf("order not committed")
	}
}

func TestConcurrentOrdersNeverOverdraw(t *testing.T) {
	f := newFixture(t)

	const racers = 6
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.orders.CreateOrder(context.Background(), &dto.CreateOrderInput{
				MerchantID: "m1",
				Status:     "ONGOING",
				Lines:      []dto.LineInput{{RecipeID: f.bread, Quantity: 20}},
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, apperror.ErrInsufficientStock) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	// each order needs 4000 g of the 10000 g on hand
	if ok != 2 || f.onHand(t) != 2000 {
		t.Fatalf("expected 2 winners and 2000 g left, got %d and %v", ok, f.onHand(t))
	}
}
