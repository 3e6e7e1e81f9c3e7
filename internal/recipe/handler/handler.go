package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/recipe"
	"github.com/fekuna/omnipos-stock-service/internal/recipe/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/pkg/rpc"
)

const ServiceName = "omnipos.stock.v1.RecipeService"

type RecipeHandler struct {
	uc     recipe.UseCase
	logger logger.ZapLogger
}

func NewRecipeHandler(uc recipe.UseCase, log logger.ZapLogger) *RecipeHandler {
	return &RecipeHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *RecipeHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(rpc.ServiceDesc(ServiceName,
		rpc.Unary(ServiceName, "CreateRecipe", h.CreateRecipe),
		rpc.Unary(ServiceName, "UpdateRecipe", h.UpdateRecipe),
		rpc.Unary(ServiceName, "GetRecipe", h.GetRecipe),
		rpc.Unary(ServiceName, "ListRecipes", h.ListRecipes),
		rpc.Unary(ServiceName, "DeleteRecipe", h.DeleteRecipe),
		rpc.Unary(ServiceName, "QuoteRecipe", h.QuoteRecipe),
		rpc.Unary(ServiceName, "RecostRecipe", h.RecostRecipe),
	), h)
}

func (h *RecipeHandler) CreateRecipe(ctx context.Context, req *CreateRecipeRequest) (*Recipe, error) {
	charge, err := parseMoney(req.MakingCharge)
	if err != nil {
		return nil, err
	}

	rec, err := h.uc.CreateRecipe(ctx, &dto.CreateRecipeInput{
		MerchantID:   auth.GetMerchantID(ctx),
		Name:         req.Name,
		MakingCharge: charge,
		Ingredients:  toIngredientInputs(req.Ingredients),
	})
	if err != nil {
		return nil, err
	}
	return mapRecipe(rec), nil
}

func (h *RecipeHandler) UpdateRecipe(ctx context.Context, req *UpdateRecipeRequest) (*Recipe, error) {
	input := &dto.UpdateRecipeInput{
		ID:         req.ID,
		MerchantID: auth.GetMerchantID(ctx),
		Name:       req.Name,
	}
	if req.MakingCharge != nil {
		charge, err := parseMoney(*req.MakingCharge)
		if err != nil {
			return nil, err
		}
		input.MakingCharge = &charge
	}
	if req.ReplaceIngredients {
		input.Ingredients = toIngredientInputs(req.Ingredients)
		if input.Ingredients == nil {
			input.Ingredients = []dto.IngredientInput{}
		}
	}

	rec, err := h.uc.UpdateRecipe(ctx, input)
	if err != nil {
		return nil, err
	}
	return mapRecipe(rec), nil
}

func (h *RecipeHandler) GetRecipe(ctx context.Context, req *GetRecipeRequest) (*Recipe, error) {
	rec, err := h.uc.GetRecipe(ctx, req.ID, auth.GetMerchantID(ctx))
	if err != nil {
		return nil, err
	}
	return mapRecipe(rec), nil
}

func (h *RecipeHandler) ListRecipes(ctx context.Context, req *ListRecipesRequest) (*ListRecipesResponse, error) {
	recipes, count, err := h.uc.ListRecipes(ctx, &dto.RecipeFilters{
		MerchantID:  auth.GetMerchantID(ctx),
		SearchQuery: req.Search,
		Page:        int(req.Page),
		PageSize:    int(req.PageSize),
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Recipe, len(recipes))
	for i := range recipes {
		out[i] = mapRecipe(&recipes[i])
	}
	return &ListRecipesResponse{Recipes: out, Total: int32(count)}, nil
}

func (h *RecipeHandler) DeleteRecipe(ctx context.Context, req *DeleteRecipeRequest) (*DeleteRecipeResponse, error) {
	if err := h.uc.DeleteRecipe(ctx, req.ID, auth.GetMerchantID(ctx)); err != nil {
		return nil, err
	}
	return &DeleteRecipeResponse{Success: true}, nil
}

func (h *RecipeHandler) QuoteRecipe(ctx context.Context, req *QuoteRecipeRequest) (*QuoteRecipeResponse, error) {
	charge, err := parseMoney(req.MakingCharge)
	if err != nil {
		return nil, err
	}

	quote, err := h.uc.QuoteRecipe(ctx, &dto.QuoteRecipeInput{
		MerchantID:   auth.GetMerchantID(ctx),
		RecipeID:     req.RecipeID,
		MakingCharge: charge,
		Ingredients:  toIngredientInputs(req.Ingredients),
		Quantity:     req.Quantity,
	})
	if err != nil {
		return nil, err
	}

	resp := &QuoteRecipeResponse{
		UnitCost:  quote.UnitCost.String(),
		TotalCost: quote.TotalCost.String(),
		Quantity:  quote.Quantity,
		Lines:     make([]*QuoteLine, len(quote.Lines)),
	}
	for i, l := range quote.Lines {
		resp.Lines[i] = &QuoteLine{
			ItemID:      l.ItemID,
			ItemName:    l.ItemName,
			BaseUnits:   l.BaseUnits,
			AverageCost: l.AverageCost.String(),
			Cost:        l.Cost.String(),
		}
	}
	if s := quote.Shortage; s != nil {
		resp.Shortage = &Shortage{ItemID: s.ItemID, ItemName: s.ItemName, Needed: s.Needed, Available: s.Available}
	}
	return resp, nil
}

func (h *RecipeHandler) RecostRecipe(ctx context.Context, req *RecostRecipeRequest) (*Recipe, error) {
	rec, err := h.uc.RecostRecipe(ctx, req.ID, auth.GetMerchantID(ctx))
	if err != nil {
		return nil, err
	}
	return mapRecipe(rec), nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperror.WithMetadata(apperror.CodeInvalidQuantity, "invalid amount "+s, map[string]string{"amount": s})
	}
	return d, nil
}

func toIngredientInputs(in []*Ingredient) []dto.IngredientInput {
	if in == nil {
		return nil
	}
	out := make([]dto.IngredientInput, 0, len(in))
	for _, i := range in {
		if i == nil {
			continue
		}
		out = append(out, dto.IngredientInput{ItemID: i.ItemID, QuantityNeeded: i.QuantityNeeded, Unit: i.Unit})
	}
	return out
}

func mapRecipe(m *model.Recipe) *Recipe {
	if m == nil {
		return nil
	}
	ings := make([]*Ingredient, len(m.Ingredients))
	for i, ing := range m.Ingredients {
		ings[i] = &Ingredient{ItemID: ing.ItemID, QuantityNeeded: ing.QuantityNeeded, Unit: string(ing.Unit)}
	}
	return &Recipe{
		ID:             m.ID,
		MerchantID:     m.MerchantID,
		Name:           m.Name,
		MakingCharge:   m.MakingCharge.String(),
		TotalCostPrice: m.TotalCostPrice.String(),
		Ingredients:    ings,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
