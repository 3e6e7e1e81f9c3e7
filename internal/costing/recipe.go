package costing

import (
	"sort"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/unit"
	"github.com/shopspring/decimal"
)

// Line pairs an ingredient with the stocked item it resolves to.
type Line struct {
	Ingredient model.RecipeIngredient
	Item       *model.StockedItem
}

// Resolve binds every ingredient of recipe to its item in items.
func Resolve(recipe *model.Recipe, items map[string]*model.StockedItem) ([]Line, error) {
	lines := make([]Line, 0, len(recipe.Ingredients))
	for _, ing := range recipe.Ingredients {
		item, ok := items[ing.ItemID]
		if !ok || item == nil {
			return nil, apperror.WithMetadata(apperror.CodeIngredientNotFound,
				"ingredient item "+ing.ItemID+" not found", map[string]string{"item_id": ing.ItemID})
		}
		lines = append(lines, Line{Ingredient: ing, Item: item})
	}
	return lines, nil
}

// NormalizedQuantity converts the ingredient quantity into base units of the
// item's measurement family.
func NormalizedQuantity(ing model.RecipeIngredient, item *model.StockedItem) (float64, error) {
	if !ing.Unit.Valid() {
		return unit.ToBaseUnits(ing.QuantityNeeded, ing.Unit)
	}
	if !unit.Compatible(ing.Unit, item.Unit) {
		return 0, apperror.WithMetadata(apperror.CodeInvalidUnit,
			"unit "+string(ing.Unit)+" cannot measure "+item.Name,
			map[string]string{"unit": string(ing.Unit), "item_name": item.Name})
	}
	if ing.QuantityNeeded < 0 {
		return 0, apperror.Newf(apperror.CodeInvalidQuantity, "ingredient %s has negative quantity", item.Name)
	}
	return unit.ToBaseUnits(ing.QuantityNeeded, ing.Unit)
}

// Requirements sums the base units each item must supply for one unit of the
// recipe.
func Requirements(lines []Line) (map[string]float64, error) {
	req := make(map[string]float64, len(lines))
	for _, l := range lines {
		qty, err := NormalizedQuantity(l.Ingredient, l.Item)
		if err != nil {
			return nil, err
		}
		req[l.Item.ID] = unit.Round(req[l.Item.ID] + qty)
	}
	return req, nil
}

// CheckSufficiency fails with InsufficientStock when any item cannot cover
// the quantity the recipe needs from it.
func CheckSufficiency(lines []Line) error {
	req, err := Requirements(lines)
	if err != nil {
		return err
	}
	byID := make(map[string]*model.StockedItem, len(lines))
	for _, l := range lines {
		byID[l.Item.ID] = l.Item
	}
	return CheckAvailable(req, byID)
}

// CheckAvailable compares a requirements map against on-hand stock. Items are
// visited in id order so the reported shortage is deterministic.
func CheckAvailable(req map[string]float64, items map[string]*model.StockedItem) error {
	ids := make([]string, 0, len(req))
	for id := range req {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			return apperror.WithMetadata(apperror.CodeItemNotFound, "stocked item "+id+" not found", map[string]string{"item_id": id})
		}
		if req[id] > item.OnHandBaseUnits {
			return apperror.InsufficientStock(item.ID, item.Name, req[id], item.OnHandBaseUnits)
		}
	}
	return nil
}

// LineCost is the priced share of one ingredient.
type LineCost struct {
	ItemID      string
	ItemName    string
	BaseUnits   float64
	AverageCost decimal.Decimal
	Cost        decimal.Decimal
}

// Breakdown prices every line and returns the lines with the recipe total,
// makingCharge included.
func Breakdown(makingCharge decimal.Decimal, lines []Line) ([]LineCost, decimal.Decimal, error) {
	out := make([]LineCost, 0, len(lines))
	total := makingCharge
	for _, l := range lines {
		qty, err := NormalizedQuantity(l.Ingredient, l.Item)
		if err != nil {
			return nil, decimal.Zero, err
		}
		avg, err := AverageCostPerBaseUnit(l.Item)
		if err != nil {
			return nil, decimal.Zero, err
		}
		cost := avg.Mul(decimal.NewFromFloat(qty))
		total = total.Add(cost)
		out = append(out, LineCost{
			ItemID:      l.Item.ID,
			ItemName:    l.Item.Name,
			BaseUnits:   qty,
			AverageCost: avg.Round(CostScale),
			Cost:        cost.Round(CostScale),
		})
	}
	return out, total.Round(CostScale), nil
}

// Cost returns makingCharge plus the weighted-average cost of every line.
func Cost(makingCharge decimal.Decimal, lines []Line) (decimal.Decimal, error) {
	_, total, err := Breakdown(makingCharge, lines)
	return total, err
}

type Options struct {
	// ValidateStock rejects recipes whose ingredients are not currently on hand.
	ValidateStock bool
}

// CostRecipe prices recipe against the supplied item snapshot.
func CostRecipe(recipe *model.Recipe, items map[string]*model.StockedItem, opts Options) (decimal.Decimal, error) {
	lines, err := Resolve(recipe, items)
	if err != nil {
		return decimal.Zero, err
	}
	if opts.ValidateStock {
		if err := CheckSufficiency(lines); err != nil {
			return decimal.Zero, err
		}
	}
	return Cost(recipe.MakingCharge, lines)
}
