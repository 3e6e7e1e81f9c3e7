// Package stock reserves and releases physical stock for orders.
package stock

import (
	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/costing"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/unit"
)

// OrderRequirements accumulates one map of base units per item across every
// line, so an item shared by several recipes is checked against its summed
// need.
func OrderRequirements(lines []model.OrderLine, recipes map[string]*model.Recipe, items map[string]*model.StockedItem) (map[string]float64, error) {
	req := make(map[string]float64)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, apperror.WithMetadata(apperror.CodeInvalidQuantity,
				"order line quantity must be positive", map[string]string{"recipe_id": line.RecipeID})
		}
		rec, ok := recipes[line.RecipeID]
		if !ok || rec == nil {
			return nil, apperror.WithMetadata(apperror.CodeRecipeNotFound,
				"recipe "+line.RecipeID+" not found", map[string]string{"recipe_id": line.RecipeID})
		}

		resolved, err := costing.Resolve(rec, items)
		if err != nil {
			return nil, err
		}
		perUnit, err := costing.Requirements(resolved)
		if err != nil {
			return nil, err
		}
		for id, qty := range perUnit {
			req[id] = unit.Round(req[id] + qty*float64(line.Quantity))
		}
	}
	return req, nil
}

// RecipeIDs lists the distinct recipes referenced by lines.
func RecipeIDs(lines []model.OrderLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.RecipeID]; ok {
			continue
		}
		seen[l.RecipeID] = struct{}{}
		ids = append(ids, l.RecipeID)
	}
	return ids
}
