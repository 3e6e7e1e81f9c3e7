package dto

import "github.com/shopspring/decimal"

type CreateItemInput struct {
	MerchantID        string
	Name              string
	ItemClass         string // CONSUMABLE or PACKAGING
	Unit              string
	PackWeight        float64
	LowStockThreshold *float64
	LowStockUnit      string
}

type RestockInput struct {
	MerchantID      string
	ItemID          string
	AddedPacks      int64
	AddedPackWeight float64 // Zero means the item's own pack weight
	AddedUnit       string  // Empty means the item's own unit
	AddedCost       decimal.Decimal
	IdempotencyKey  string
	Notes           string
}
