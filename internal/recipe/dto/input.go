package dto

import "github.com/shopspring/decimal"

type IngredientInput struct {
	ItemID         string
	QuantityNeeded float64
	Unit           string
}

type CreateRecipeInput struct {
	MerchantID   string
	Name         string
	MakingCharge decimal.Decimal
	Ingredients  []IngredientInput
}

type UpdateRecipeInput struct {
	ID           string
	MerchantID   string
	Name         *string
	MakingCharge *decimal.Decimal
	Ingredients  []IngredientInput // nil keeps the current ingredients
}

// QuoteRecipeInput prices either a stored recipe (RecipeID) or an ad hoc
// ingredient list.
type QuoteRecipeInput struct {
	MerchantID   string
	RecipeID     string
	MakingCharge decimal.Decimal
	Ingredients  []IngredientInput
	Quantity     int64 // portions; zero means one
}
