// Package costing derives weighted-average item costs from the purchase
// ledger and prices recipes from them.
package costing

import (
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

// CostScale is the number of decimal places kept on persisted costs.
const CostScale = 6

// AverageCostPerBaseUnit returns cumulative cost spent divided by the total
// base units ever purchased. An item with no purchase history costs zero.
func AverageCostPerBaseUnit(item *model.StockedItem) (decimal.Decimal, error) {
	base, err := item.HistoricalBaseUnits()
	if err != nil {
		return decimal.Zero, err
	}
	if base == 0 {
		return decimal.Zero, nil
	}
	return item.CumulativeCostSpent.Div(decimal.NewFromFloat(base)), nil
}
