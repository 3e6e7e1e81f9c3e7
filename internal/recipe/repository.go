package recipe

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/recipe/dto"
)

type Repository interface {
	WithTx(tx *sqlx.Tx) Repository

	// Create and Update persist the recipe together with its ingredients.
	Create(ctx context.Context, recipe *model.Recipe) error
	Update(ctx context.Context, recipe *model.Recipe) error
	UpdateCost(ctx context.Context, id string, cost decimal.Decimal, at time.Time) error
	Delete(ctx context.Context, id string) error

	FindByID(ctx context.Context, id string) (*model.Recipe, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Recipe, error)
	FindAll(ctx context.Context, filters *dto.RecipeFilters) ([]model.Recipe, int, error)

	// FindIDsByItem lists recipes with at least one ingredient on itemID.
	FindIDsByItem(ctx context.Context, itemID string) ([]string, error)
	// LockByIDs row-locks recipes in ascending id order and loads them.
	LockByIDs(ctx context.Context, ids []string) ([]model.Recipe, error)

	CountOrderLines(ctx context.Context, recipeID string) (int, error)
}
