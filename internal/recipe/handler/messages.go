package handler

import "time"

type Ingredient struct {
	ItemID         string  `msgpack:"item_id"`
	QuantityNeeded float64 `msgpack:"quantity_needed"`
	Unit           string  `msgpack:"unit"`
}

type CreateRecipeRequest struct {
	Name         string        `msgpack:"name"`
	MakingCharge string        `msgpack:"making_charge"`
	Ingredients  []*Ingredient `msgpack:"ingredients"`
}

type UpdateRecipeRequest struct {
	ID           string  `msgpack:"id"`
	Name         *string `msgpack:"name,omitempty"`
	MakingCharge *string `msgpack:"making_charge,omitempty"`
	// ReplaceIngredients swaps the ingredient list for Ingredients, even
	// when it is empty.
	ReplaceIngredients bool          `msgpack:"replace_ingredients"`
	Ingredients        []*Ingredient `msgpack:"ingredients,omitempty"`
}

type GetRecipeRequest struct {
	ID string `msgpack:"id"`
}

type DeleteRecipeRequest struct {
	ID string `msgpack:"id"`
}

type DeleteRecipeResponse struct {
	Success bool `msgpack:"success"`
}

type ListRecipesRequest struct {
	Search   string `msgpack:"search,omitempty"`
	Page     int32  `msgpack:"page"`
	PageSize int32  `msgpack:"page_size"`
}

type ListRecipesResponse struct {
	Recipes []*Recipe `msgpack:"recipes"`
	Total   int32     `msgpack:"total"`
}

type QuoteRecipeRequest struct {
	RecipeID     string        `msgpack:"recipe_id,omitempty"`
	MakingCharge string        `msgpack:"making_charge,omitempty"`
	Ingredients  []*Ingredient `msgpack:"ingredients,omitempty"`
	Quantity     int64         `msgpack:"quantity"`
}

type QuoteLine struct {
	ItemID      string  `msgpack:"item_id"`
	ItemName    string  `msgpack:"item_name"`
	BaseUnits   float64 `msgpack:"base_units"`
	AverageCost string  `msgpack:"average_cost"`
	Cost        string  `msgpack:"cost"`
}

type Shortage struct {
	ItemID    string  `msgpack:"item_id"`
	ItemName  string  `msgpack:"item_name"`
	Needed    float64 `msgpack:"needed"`
	Available float64 `msgpack:"available"`
}

type QuoteRecipeResponse struct {
	UnitCost  string       `msgpack:"unit_cost"`
	TotalCost string       `msgpack:"total_cost"`
	Quantity  int64        `msgpack:"quantity"`
	Lines     []*QuoteLine `msgpack:"lines"`
	Shortage  *Shortage    `msgpack:"shortage,omitempty"`
}

type RecostRecipeRequest struct {
	ID string `msgpack:"id"`
}

type Recipe struct {
	ID             string        `msgpack:"id"`
	MerchantID     string        `msgpack:"merchant_id"`
	Name           string        `msgpack:"name"`
	MakingCharge   string        `msgpack:"making_charge"`
	TotalCostPrice string        `msgpack:"total_cost_price"`
	Ingredients    []*Ingredient `msgpack:"ingredients"`
	CreatedAt      time.Time     `msgpack:"created_at"`
	UpdatedAt      time.Time     `msgpack:"updated_at"`
}
