package dto

import (
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/shopspring/decimal"
)

type ItemFilters struct {
	MerchantID string
	ItemClass  string
	Page       int
	PageSize   int
}

type MovementFilters struct {
	MerchantID   string
	ItemID       string
	MovementType string
	Page         int
	PageSize     int
}

type RestockResult struct {
	Item           *model.StockedItem
	PacksAdded     int64
	BaseUnitsAdded float64
	AverageCost    decimal.Decimal
	Recosted       []model.Recipe
}
