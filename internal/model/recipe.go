package model

import (
	"github.com/fekuna/omnipos-stock-service/internal/unit"
	"github.com/shopspring/decimal"
)

type Recipe struct {
	BaseModel
	MerchantID     string             `db:"merchant_id" json:"merchant_id"`
	Name           string             `db:"name" json:"name"`
	MakingCharge   decimal.Decimal    `db:"making_charge" json:"making_charge"`
	TotalCostPrice decimal.Decimal    `db:"total_cost_price" json:"total_cost_price"` // Derived, written only by costing
	Ingredients    []RecipeIngredient `db:"-" json:"ingredients"`
}

type RecipeIngredient struct {
	ID             string    `db:"id" json:"id"`
	RecipeID       string    `db:"recipe_id" json:"recipe_id"`
	ItemID         string    `db:"item_id" json:"item_id"`
	Position       int       `db:"position" json:"position"`
	QuantityNeeded float64   `db:"quantity_needed" json:"quantity_needed"`
	Unit           unit.Unit `db:"unit" json:"unit"`
}

// ItemIDs returns the distinct items the recipe consumes.
func (r *Recipe) ItemIDs() []string {
	seen := make(map[string]struct{}, len(r.Ingredients))
	ids := make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if _, ok := seen[ing.ItemID]; ok {
			continue
		}
		seen[ing.ItemID] = struct{}{}
		ids = append(ids, ing.ItemID)
	}
	return ids
}
