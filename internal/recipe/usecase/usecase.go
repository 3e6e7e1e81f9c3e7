package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/recipe"
	"github.com/fekuna/omnipos-stock-service/internal/recipe/dto"
	"github.com/fekuna/omnipos-stock-service/internal/unit"
	"github.com/fekuna/omnipos-stock-service/pkg/database"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
)

var tracer = otel.Tracer("github.com/fekuna/omnipos-stock-service/internal/recipe")

const (
	listCacheTTL = 5 * time.Minute
	syncTimeout  = 3 * time.Second
)

type recipeUseCase struct {
	repo    recipe.Repository
	items   inventory.Repository
	txm     *database.TxManager
	indexer recipe.Indexer
	cache   recipe.Cache
	logger  logger.ZapLogger
}

// NewRecipeUseCase wires recipe management. indexer and cache are optional.
func NewRecipeUseCase(repo recipe.Repository, items inventory.Repository, txm *database.TxManager, indexer recipe.Indexer, cache recipe.Cache, log logger.ZapLogger) recipe.UseCase {
	return &recipeUseCase{
		repo:    repo,
		items:   items,
		txm:     txm,
		indexer: indexer,
		cache:   cache,
		logger:  log,
	}
}

func (uc *recipeUseCase) CreateRecipe(ctx context.Context, input *dto.CreateRecipeInput) (*model.Recipe, error) {
	ctx, span := tracer.Start(ctx, "recipe.CreateRecipe")
	defer span.End()

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "recipe name is required")
	}
	if input.MakingCharge.IsNegative() {
		return nil, apperror.New(apperror.CodeInvalidQuantity, "making charge cannot be negative")
	}

	now := time.Now().UTC()
	rec := &model.Recipe{
		BaseModel:    model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		MerchantID:   input.MerchantID,
		Name:         name,
		MakingCharge: input.MakingCharge,
	}
	ings, err := buildIngredients(rec.ID, input.Ingredients)
	if err != nil {
		return nil, err
	}
	rec.Ingredients = ings

	err = uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		cost, err := uc.costLocked(ctx, tx, rec, costing.Options{ValidateStock: true})
		if err != nil {
			return err
		}
		rec.TotalCostPrice = cost
		return uc.repo.WithTx(tx).Create(ctx, rec)
	})
	if err != nil {
		uc.logFailure("create recipe", rec.ID, err)
		return nil, err
	}

	uc.logger.Info("Recipe created", zap.String("recipe_id", rec.ID), zap.String("total_cost_price", rec.TotalCostPrice.String()))
	uc.sync(ctx, rec.MerchantID, []model.Recipe{*rec})
	return rec, nil
}

func (uc *recipeUseCase) UpdateRecipe(ctx context.Context, input *dto.UpdateRecipeInput) (*model.Recipe, error) {
	ctx, span := tracer.Start(ctx, "recipe.UpdateRecipe")
	defer span.End()
	span.SetAttributes(attribute.String("recipe_id", input.ID))

	var newIngredients []model.RecipeIngredient
	if input.Ingredients != nil {
		ings, err := buildIngredients(input.ID, input.Ingredients)
		if err != nil {
			return nil, err
		}
		newIngredients = ings
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, apperror.New(apperror.CodeInvalidArgument, "recipe name is required")
	}
	if input.MakingCharge != nil && input.MakingCharge.IsNegative() {
		return nil, apperror.New(apperror.CodeInvalidQuantity, "making charge cannot be negative")
	}

	var rec *model.Recipe
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		locked, err := repo.LockByIDs(ctx, []string{input.ID})
		if err != nil {
			return err
		}
		if len(locked) == 0 {
			return recipeNotFound(input.ID)
		}
		rec = &locked[0]
		if input.MerchantID != "" && rec.MerchantID != input.MerchantID {
			return recipeNotFound(input.ID)
		}

		if input.Name != nil {
			rec.Name = strings.TrimSpace(*input.Name)
		}
		if input.MakingCharge != nil {
			rec.MakingCharge = *input.MakingCharge
		}
		if newIngredients != nil {
			rec.Ingredients = newIngredients
		}
		rec.UpdatedAt = time.Now().UTC()

		cost, err := uc.costLocked(ctx, tx, rec, costing.Options{ValidateStock: true})
		if err != nil {
			return err
		}
		rec.TotalCostPrice = cost
		return repo.Update(ctx, rec)
	})
	if err != nil {
		uc.logFailure("update recipe", input.ID, err)
		return nil, err
	}

	uc.logger.Info("Recipe updated", zap.String("recipe_id", rec.ID), zap.String("total_cost_price", rec.TotalCostPrice.String()))
	uc.sync(ctx, rec.MerchantID, []model.Recipe{*rec})
	return rec, nil
}

// GetRecipe loads a recipe. A non-empty merchantID hides other merchants'
// recipes.
func (uc *recipeUseCase) GetRecipe(ctx context.Context, id, merchantID string) (*model.Recipe, error) {
	rec, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil || !ownedBy(rec, merchantID) {
		return nil, recipeNotFound(id)
	}
	return rec, nil
}

type cachedList struct {
	Recipes []model.Recipe
	Count   int
}

func (uc *recipeUseCase) ListRecipes(ctx context.Context, filters *dto.RecipeFilters) ([]model.Recipe, int, error) {
	cacheKey := listCacheKey(filters)
	if uc.cache != nil {
		var cached cachedList
		if hit, err := uc.cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
			return cached.Recipes, cached.Count, nil
		}
	}

	recipes, count, err := uc.listRecipes(ctx, filters)
	if err != nil {
		return nil, 0, err
	}

	if uc.cache != nil {
		if err := uc.cache.SetJSON(ctx, cacheKey, cachedList{Recipes: recipes, Count: count}, listCacheTTL); err != nil {
			uc.logger.Warn("failed to cache recipe list", zap.Error(err))
		}
	}
	return recipes, count, nil
}

func (uc *recipeUseCase) listRecipes(ctx context.Context, filters *dto.RecipeFilters) ([]model.Recipe, int, error) {
	if filters.SearchQuery != "" && uc.indexer != nil {
		ids, total, err := uc.indexer.SearchRecipeIDs(ctx, filters.MerchantID, filters.SearchQuery, filters.Page, filters.PageSize)
		if err == nil {
			byID, err := uc.repo.FindByIDs(ctx, ids)
			if err != nil {
				return nil, 0, err
			}
			// keep search relevance order; costs come from the store
			recipes := make([]model.Recipe, 0, len(ids))
			for _, id := range ids {
				if r, ok := byID[id]; ok {
					recipes = append(recipes, *r)
				}
			}
			return recipes, total, nil
		}
		uc.logger.Error("recipe search failed, falling back to DB", zap.Error(err))
	}
	return uc.repo.FindAll(ctx, filters)
}

func (uc *recipeUseCase) DeleteRecipe(ctx context.Context, id, merchantID string) error {
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		repo := uc.repo.WithTx(tx)
		locked, err := repo.LockByIDs(ctx, []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 || !ownedBy(&locked[0], merchantID) {
			return recipeNotFound(id)
		}
		merchantID = locked[0].MerchantID

		n, err := repo.CountOrderLines(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperror.WithMetadata(apperror.CodeRecipeInUse,
				fmt.Sprintf("recipe %s is used by %d order lines", id, n), map[string]string{"recipe_id": id})
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		uc.logFailure("delete recipe", id, err)
		return err
	}

	uc.logger.Info("Recipe deleted", zap.String("recipe_id", id))
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
	defer cancel()
	if uc.indexer != nil {
		if err := uc.indexer.DeleteRecipe(ctx, id); err != nil {
			uc.logger.Error("failed to remove recipe from index", zap.String("recipe_id", id), zap.Error(err))
		}
	}
	uc.invalidateList(ctx, merchantID)
	return nil
}

func (uc *recipeUseCase) QuoteRecipe(ctx context.Context, input *dto.QuoteRecipeInput) (*dto.Quote, error) {
	qty := input.Quantity
	if qty < 0 {
		return nil, apperror.New(apperror.CodeInvalidQuantity, "quantity cannot be negative")
	}
	if qty == 0 {
		qty = 1
	}

	rec := &model.Recipe{MerchantID: input.MerchantID, MakingCharge: input.MakingCharge}
	if input.RecipeID != "" {
		stored, err := uc.GetRecipe(ctx, input.RecipeID, input.MerchantID)
		if err != nil {
			return nil, err
		}
		rec = stored
	} else {
		if input.MakingCharge.IsNegative() {
			return nil, apperror.New(apperror.CodeInvalidQuantity, "making charge cannot be negative")
		}
		ings, err := buildIngredients("", input.Ingredients)
		if err != nil {
			return nil, err
		}
		rec.Ingredients = ings
	}

	items, err := uc.items.FindByIDs(ctx, rec.ItemIDs())
	if err != nil {
		return nil, err
	}
	lines, err := costing.Resolve(rec, merchantItems(items, rec.MerchantID))
	if err != nil {
		return nil, err
	}
	breakdown, unitCost, err := costing.Breakdown(rec.MakingCharge, lines)
	if err != nil {
		return nil, err
	}

	quote := &dto.Quote{
		UnitCost:  unitCost,
		TotalCost: unitCost.Mul(decimal.NewFromInt(qty)),
		Quantity:  qty,
		Lines:     breakdown,
	}

	req, err := costing.Requirements(lines)
	if err != nil {
		return nil, err
	}
	for id := range req {
		req[id] = unit.Round(req[id] * float64(qty))
	}
	var shortage *apperror.InsufficientStockError
	if err := costing.CheckAvailable(req, items); errors.As(err, &shortage) {
		quote.Shortage = shortage
	} else if err != nil {
		return nil, err
	}
	return quote, nil
}

func (uc *recipeUseCase) RecostRecipe(ctx context.Context, id, merchantID string) (*model.Recipe, error) {
	var rec *model.Recipe
	err := uc.txm.WithinTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := uc.repo.WithTx(tx).LockByIDs(ctx, []string{id})
		if err != nil {
			return err
		}
		if len(locked) == 0 || !ownedBy(&locked[0], merchantID) {
			return recipeNotFound(id)
		}
		recosted, err := uc.recost(ctx, tx, locked)
		if err != nil {
			return err
		}
		rec = &recosted[0]
		return nil
	})
	if err != nil {
		uc.logFailure("recost recipe", id, err)
		return nil, err
	}
	uc.sync(ctx, rec.MerchantID, []model.Recipe{*rec})
	return rec, nil
}

// RecostForItem runs inside a restock transaction. Recipe rows are locked
// before item costs are read, so concurrent restocks of two ingredients of
// one recipe serialize on the recipe and the later one prices with both.
func (uc *recipeUseCase) RecostForItem(ctx context.Context, tx *sqlx.Tx, itemID string) ([]model.Recipe, error) {
	ctx, span := tracer.Start(ctx, "recipe.RecostForItem")
	defer span.End()

	repo := uc.repo.WithTx(tx)
	ids, err := repo.FindIDsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("item_id", itemID), attribute.Int("recipes", len(ids)))
	if len(ids) == 0 {
		return nil, nil
	}

	locked, err := repo.LockByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return uc.recost(ctx, tx, locked)
}

// AfterCascade publishes recosted recipes once their transaction committed.
func (uc *recipeUseCase) AfterCascade(ctx context.Context, recipes []model.Recipe) {
	byMerchant := map[string][]model.Recipe{}
	for _, r := range recipes {
		byMerchant[r.MerchantID] = append(byMerchant[r.MerchantID], r)
	}
	for merchantID, rs := range byMerchant {
		uc.sync(ctx, merchantID, rs)
	}
}

// recost prices already locked recipes without the stock gate and stores
// the new costs.
func (uc *recipeUseCase) recost(ctx context.Context, tx *sqlx.Tx, recipes []model.Recipe) ([]model.Recipe, error) {
	seen := map[string]struct{}{}
	var itemIDs []string
	for i := range recipes {
		for _, id := range recipes[i].ItemIDs() {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				itemIDs = append(itemIDs, id)
			}
		}
	}
	items, err := uc.items.WithTx(tx).FindByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}

	repo := uc.repo.WithTx(tx)
	now := time.Now().UTC()
	for i := range recipes {
		cost, err := costing.CostRecipe(&recipes[i], items, costing.Options{})
		if err != nil {
			return nil, err
		}
		if err := repo.UpdateCost(ctx, recipes[i].ID, cost, now); err != nil {
			return nil, err
		}
		recipes[i].TotalCostPrice = cost
		recipes[i].UpdatedAt = now
	}
	return recipes, nil
}

// costLocked locks the recipe's items and prices it against them.
func (uc *recipeUseCase) costLocked(ctx context.Context, tx *sqlx.Tx, rec *model.Recipe, opts costing.Options) (decimal.Decimal, error) {
	items, err := uc.items.WithTx(tx).LockByIDs(ctx, rec.ItemIDs())
	if err != nil {
		return decimal.Zero, err
	}
	return costing.CostRecipe(rec, merchantItems(items, rec.MerchantID), opts)
}

// sync refreshes the search index and drops cached lists. Failures only
// degrade search freshness.
func (uc *recipeUseCase) sync(ctx context.Context, merchantID string, recipes []model.Recipe) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
	defer cancel()

	if uc.indexer != nil {
		for i := range recipes {
			if err := uc.indexer.IndexRecipe(ctx, &recipes[i]); err != nil {
				uc.logger.Error("failed to index recipe", zap.String("recipe_id", recipes[i].ID), zap.Error(err))
			}
		}
	}
	uc.invalidateList(ctx, merchantID)
}

func (uc *recipeUseCase) invalidateList(ctx context.Context, merchantID string) {
	if uc.cache == nil {
		return
	}
	if err := uc.cache.DeletePattern(ctx, fmt.Sprintf("recipes:list:%s:*", merchantID)); err != nil {
		uc.logger.Warn("failed to invalidate recipe list cache", zap.String("merchant_id", merchantID), zap.Error(err))
	}
}

func (uc *recipeUseCase) logFailure(op, id string, err error) {
	switch apperror.CodeOf(err) {
	case apperror.CodeInternal:
		uc.logger.Error("failed to "+op, zap.String("recipe_id", id), zap.Error(err))
	default:
		uc.logger.Warn("rejected "+op, zap.String("recipe_id", id), zap.Error(err))
	}
}

func listCacheKey(f *dto.RecipeFilters) string {
	data, _ := json.Marshal(f)
	return fmt.Sprintf("recipes:list:%s:%x", f.MerchantID, md5.Sum(data))
}

func buildIngredients(recipeID string, inputs []dto.IngredientInput) ([]model.RecipeIngredient, error) {
	ings := make([]model.RecipeIngredient, 0, len(inputs))
	for i, in := range inputs {
		if in.ItemID == "" {
			return nil, apperror.New(apperror.CodeInvalidArgument, "ingredient item id is required")
		}
		u, err := unit.Parse(in.Unit)
		if err != nil {
			return nil, err
		}
		if q := in.QuantityNeeded; !(q > 0) || math.IsInf(q, 0) {
			return nil, apperror.WithMetadata(apperror.CodeInvalidQuantity,
				"ingredient quantity must be positive", map[string]string{"item_id": in.ItemID})
		}
		ings = append(ings, model.RecipeIngredient{
			ID:             uuid.New().String(),
			RecipeID:       recipeID,
			ItemID:         in.ItemID,
			Position:       i,
			QuantityNeeded: in.QuantityNeeded,
			Unit:           u,
		})
	}
	return ings, nil
}

func ownedBy(rec *model.Recipe, merchantID string) bool {
	return merchantID == "" || rec.MerchantID == merchantID
}

// merchantItems hides items of other merchants so they resolve as missing.
func merchantItems(items map[string]*model.StockedItem, merchantID string) map[string]*model.StockedItem {
	if merchantID == "" {
		return items
	}
	out := make(map[string]*model.StockedItem, len(items))
	for id, item := range items {
		if item.MerchantID == merchantID {
			out[id] = item
		}
	}
	return out
}

func recipeNotFound(id string) error {
	return apperror.WithMetadata(apperror.CodeRecipeNotFound, "recipe "+id+" not found", map[string]string{"recipe_id": id})
}
