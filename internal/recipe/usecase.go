package recipe

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/recipe/dto"
)

type UseCase interface {
	CreateRecipe(ctx context.Context, input *dto.CreateRecipeInput) (*model.Recipe, error)
	UpdateRecipe(ctx context.Context, input *dto.UpdateRecipeInput) (*model.Recipe, error)
	GetRecipe(ctx context.Context, id, merchantID string) (*model.Recipe, error)
	ListRecipes(ctx context.Context, filters *dto.RecipeFilters) ([]model.Recipe, int, error)
	DeleteRecipe(ctx context.Context, id, merchantID string) error

	// QuoteRecipe prices a recipe without persisting it or requiring stock.
	QuoteRecipe(ctx context.Context, input *dto.QuoteRecipeInput) (*dto.Quote, error)
	// RecostRecipe refreshes the stored cost from current item costs.
	RecostRecipe(ctx context.Context, id, merchantID string) (*model.Recipe, error)

	inventory.CostCascader
}

// Indexer keeps the recipe catalog searchable.
type Indexer interface {
	IndexRecipe(ctx context.Context, recipe *model.Recipe) error
	DeleteRecipe(ctx context.Context, id string) error
	SearchRecipeIDs(ctx context.Context, merchantID, query string, page, pageSize int) ([]string, int, error)
}

// Cache stores list results between writes.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) error
}
