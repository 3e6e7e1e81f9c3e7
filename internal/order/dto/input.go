package dto

import "github.com/shopspring/decimal"

type LineInput struct {
	RecipeID     string
	Quantity     int64
	SellingPrice decimal.Decimal
}

type CreateOrderInput struct {
	MerchantID   string
	CustomerName string
	Status       string // Empty means PENDING
	Lines        []LineInput
}

type UpdateOrderInput struct {
	ID           string
	MerchantID   string
	CustomerName *string
	Status       *string
	Lines        []LineInput // nil keeps the current lines
}

type UpdateStatusInput struct {
	ID         string
	MerchantID string
	Status     string
}
