package dto

import (
	"github.com/shopspring/decimal"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/costing"
)

type RecipeFilters struct {
	MerchantID  string
	SearchQuery string
	Page        int
	PageSize    int
}

type Quote struct {
	UnitCost  decimal.Decimal // one portion
	TotalCost decimal.Decimal // UnitCost × Quantity
	Quantity  int64
	Lines     []costing.LineCost
	// Shortage is set when current stock cannot cover Quantity portions.
	Shortage *apperror.InsufficientStockError
}
