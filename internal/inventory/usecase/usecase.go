package usecase

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/costing"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/unit"
	"github.com/fekuna/omnipos-stock-service/pkg/database"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-stock-service/internal/inventory")

// restock idempotency keys outlive any client retry window
const idempotencyTTL = 24 * time.Hour

type inventoryUseCase struct {
	repo    inventory.Repository
	txm     *database.TxManager
	cascade inventory.CostCascader
	locker  inventory.Locker
	logger  logger.ZapLogger
}

// NewInventoryUseCase wires the ledger. locker may be nil, in which case
// idempotency keys are ignored.
func NewInventoryUseCase(repo inventory.Repository, txm *database.TxManager, cascade inventory.CostCascader, locker inventory.Locker, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:    repo,
		txm:     txm,
		cascade: cascade,
		locker:  locker,
		logger:  log,
	}
}

func (uc *inventoryUseCase) CreateItem(ctx context.Context, input *dto.CreateItemInput) (*model.StockedItem, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "item name is required")
	}

	class := model.ItemClass(strings.ToUpper(strings.TrimSpace(input.ItemClass)))
	if !class.Valid() {
		return nil, apperror.Newf(apperror.CodeInvalidArgument, "unknown item class %q", input.ItemClass)
	}

	u, err := unit.Parse(input.Unit)
	if err != nil {
		return nil, err
	}

	packWeight := input.PackWeight
	if class == model.ItemClassPackaging {
		fam, _ := u.Family()
		if fam != unit.Count {
			return nil, apperror.WithMetadata(apperror.CodeInvalidUnit,
				"packaging items are counted, not measured in "+string(u), map[string]string{"unit": string(u)})
		}
		packWeight = 1
	} else if !positive(packWeight) {
		return nil, apperror.New(apperror.CodeInvalidQuantity, "pack weight must be positive")
	}

	var lowUnit *string
	if input.LowStockThreshold != nil {
		if t := *input.LowStockThreshold; t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, apperror.New(apperror.CodeInvalidQuantity, "low stock threshold cannot be negative")
		}
		lu := u
		if input.LowStockUnit != "" {
			if lu, err = unit.Parse(input.LowStockUnit); err != nil {
				return nil, err
			}
			if !unit.Compatible(lu, u) {
				return nil, apperror.WithMetadata(apperror.CodeInvalidUnit,
					"low stock unit "+string(lu)+" does not match "+string(u), map[string]string{"unit": string(lu)})
			}
		}
		s := string(lu)
		lowUnit = &s
	}

	now := time.Now().UTC()
	item := &model.StockedItem{
		BaseModel:           model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		MerchantID:          input.MerchantID,
		Name:                name,
		ItemClass:           class,
		Unit:                u,
		PackWeight:          packWeight,
		CumulativeCostSpent: decimal.Zero,
		LowStockThreshold:   input.LowStockThreshold,
		LowStockUnit:        lowUnit,
	}

	if err := uc.repo.Create(ctx, item); err != nil {
		uc.logger.Error("failed to create stocked item", zap.Error(err))
		return nil, err
	}

	uc.logger.Info("Stocked item created", zap.String("item_id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// GetItem loads an item. A non-empty merchantID hides other merchants' items.
func (uc *inventoryUseCase) GetItem(ctx context.Context, id, merchantID string) (*model.StockedItem, error) {
	item, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil || !ownedBy(item, merchantID) {
		return nil, itemNotFound(id)
	}
	return item, nil
}

func (uc *inventoryUseCase) ListItems(ctx context.Context, filters *dto.ItemFilters) ([]model.StockedItem, int, error) {
	return uc.repo.FindAll(ctx, filters)
}

// ListLowStock reports items whose on-hand stock is below their threshold.
// The threshold is informational; nothing is blocked by it.
func (uc *inventoryUseCase) ListLowStock(ctx context.Context, merchantID string, page, pageSize int) ([]model.StockedItem, int, error) {
	items, _, err := uc.repo.FindAll(ctx, &dto.ItemFilters{MerchantID: merchantID})
	if err != nil {
		return nil, 0, err
	}

	low := make([]model.StockedItem, 0)
	for _, item := range items {
		threshold, ok, err := item.LowStockBaseUnits()
		if err != nil {
			uc.logger.Warn("skipping item with invalid threshold unit", zap.String("item_id", item.ID), zap.Error(err))
			continue
		}
		if ok && item.OnHandBaseUnits < threshold {
			low = append(low, item)
		}
	}

	total := len(low)
	if pageSize > 0 {
		start := (max(page, 1) - 1) * pageSize
		if start > total {
			start = total
		}
		end := min(start+pageSize, total)
		low = low[start:end]
	}
	return low, total, nil
}

func (uc *inventoryUseCase) AverageCost(ctx context.Context, id, merchantID string) (decimal.Decimal, error) {
	item, err := uc.GetItem(ctx, id, merchantID)
	if err != nil {
		return decimal.Zero, err
	}
	return costing.AverageCostPerBaseUnit(item)
}

// Restock appends a purchase to the item's ledger and recosts every recipe
// that uses the item, all in one transaction.
func (uc *inventoryUseCase) Restock(ctx context.Context, input *dto.RestockInput) (*dto.RestockResult, error) {
	ctx, span := tracer.Start(ctx, "inventory.Restock")
	defer span.End()
	span.SetAttributes(attribute.String("item_id", input.ItemID), attribute.Int64("added_packs", input.AddedPacks))

	if input.AddedPacks <= 0 {
		return nil, apperror.New(apperror.CodeInvalidQuantity, "added packs must be positive")
	}
	if input.AddedCost.IsNegative() {
		return nil, apperror.New(apperror.CodeInvalidQuantity, "added cost cannot be negative")
	}

	if w := input.AddedPackWeight; w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return nil, apperror.New(apperror.CodeInvalidQuantity, "added pack weight must be positive")
	}

	release, err := uc.claimIdempotencyKey(ctx, input.MerchantID, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	var result *dto.RestockResult
	err = uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		result = nil
		repo := uc.repo.WithTx(tx)

		items, err := repo.LockByIDs(ctx, []string{input.ItemID})
		if err != nil {
			return err
		}
		item, ok := items[input.ItemID]
		if !ok || !ownedBy(item, input.MerchantID) {
			return itemNotFound(input.ItemID)
		}

		addedBase, packsToAdd, err := restockQuantities(item, input)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		before := item.OnHandBaseUnits
		item.CumulativePacksPurchased += packsToAdd
		item.CumulativeCostSpent = item.CumulativeCostSpent.Add(input.AddedCost)
		item.OnHandBaseUnits = unit.Round(item.OnHandBaseUnits + addedBase)
		item.UpdatedAt = now

		if err := item.CheckLedger(); err != nil {
			return err
		}
		if err := repo.UpdateLedger(ctx, item); err != nil {
			return err
		}

		refType := model.ReferenceTypeRestock
		var refID *string
		if input.IdempotencyKey != "" {
			key := input.IdempotencyKey
			refID = &key
		}
		if err := repo.LogMovement(ctx, &model.StockMovement{
			ID:             uuid.New().String(),
			MerchantID:     item.MerchantID,
			ItemID:         item.ID,
			MovementType:   model.MovementTypeRestock,
			QuantityChange: addedBase,
			QuantityBefore: before,
			QuantityAfter:  item.OnHandBaseUnits,
			CostChange:     input.AddedCost,
			ReferenceType:  &refType,
			ReferenceID:    refID,
			Notes:          input.Notes,
			CreatedAt:      now,
		}); err != nil {
			return err
		}

		var recosted []model.Recipe
		if uc.cascade != nil {
			if recosted, err = uc.cascade.RecostForItem(ctx, tx, item.ID); err != nil {
				return err
			}
		}

		avg, err := costing.AverageCostPerBaseUnit(item)
		if err != nil {
			return err
		}
		result = &dto.RestockResult{
			Item:           item,
			PacksAdded:     packsToAdd,
			BaseUnitsAdded: addedBase,
			AverageCost:    avg,
			Recosted:       recosted,
		}
		return nil
	})
	if err != nil {
		release()
		uc.logger.Warn("restock failed", zap.String("item_id", input.ItemID), zap.Error(err))
		return nil, err
	}

	if uc.cascade != nil && len(result.Recosted) > 0 {
		uc.cascade.AfterCascade(ctx, result.Recosted)
	}

	uc.logger.Info("Item restocked",
		zap.String("item_id", result.Item.ID),
		zap.Int64("packs_added", result.PacksAdded),
		zap.Float64("base_units_added", result.BaseUnitsAdded),
		zap.String("average_cost", result.AverageCost.String()),
		zap.Int("recipes_recosted", len(result.Recosted)),
	)
	return result, nil
}

// restockQuantities returns the base units a restock adds to physical stock
// and the pack count it adds to the purchase ledger. For measured items the
// pack count is re-derived from the item's own pack size, since deliveries
// may arrive in other units or pack sizes.
func restockQuantities(item *model.StockedItem, input *dto.RestockInput) (float64, int64, error) {
	if item.ItemClass == model.ItemClassPackaging {
		return float64(input.AddedPacks), input.AddedPacks, nil
	}

	addedUnit := item.Unit
	if input.AddedUnit != "" {
		u, err := unit.Parse(input.AddedUnit)
		if err != nil {
			return 0, 0, err
		}
		addedUnit = u
	}
	if !unit.Compatible(addedUnit, item.Unit) {
		return 0, 0, apperror.WithMetadata(apperror.CodeInvalidUnit,
			"unit "+string(addedUnit)+" cannot measure "+item.Name, map[string]string{"unit": string(addedUnit), "item_name": item.Name})
	}

	weight := input.AddedPackWeight
	if weight == 0 {
		weight = item.PackWeight
	}
	if !positive(weight) {
		return 0, 0, apperror.New(apperror.CodeInvalidQuantity, "pack weight must be positive")
	}

	perPack, err := unit.ToBaseUnits(weight, addedUnit)
	if err != nil {
		return 0, 0, err
	}
	addedBase := unit.Round(float64(input.AddedPacks) * perPack)

	itemPack, err := item.PackBaseUnits()
	if err != nil {
		return 0, 0, err
	}
	if itemPack <= 0 {
		return 0, 0, apperror.Newf(apperror.CodeInvalidQuantity, "item %s has no pack size", item.ID)
	}
	return addedBase, int64(math.Round(addedBase / itemPack)), nil
}

// claimIdempotencyKey returns a func that frees the key again if the restock
// does not commit.
func (uc *inventoryUseCase) claimIdempotencyKey(ctx context.Context, merchantID, key string) (func(), error) {
	noop := func() {}
	if key == "" || uc.locker == nil {
		return noop, nil
	}

	// keys are only unique per merchant
	lockKey := "idem:restock:" + merchantID + ":" + key
	token := uuid.New().String()
	ok, err := uc.locker.AcquireLock(ctx, lockKey, token, idempotencyTTL)
	if err != nil {
		// the ledger stays correct without the guard; only duplicate detection is lost
		uc.logger.Error("failed to claim restock idempotency key", zap.String("key", key), zap.Error(err))
		return noop, nil
	}
	if !ok {
		return nil, apperror.WithMetadata(apperror.CodeDuplicateRequest,
			"restock "+key+" already processed", map[string]string{"idempotency_key": key})
	}
	return func() {
		if err := uc.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			uc.logger.Error("failed to release restock idempotency key", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

func ownedBy(item *model.StockedItem, merchantID string) bool {
	return merchantID == "" || item.MerchantID == merchantID
}

// positive rejects NaN and infinities along with non-positive values.
func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func itemNotFound(id string) error {
	return apperror.WithMetadata(apperror.CodeItemNotFound, "stocked item "+id+" not found", map[string]string{"item_id": id})
}
