package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusOngoing   OrderStatus = "ONGOING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusOngoing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether orders in this status hold a stock reservation.
func (s OrderStatus) IsActive() bool {
	return s == OrderStatusOngoing || s == OrderStatusCompleted
}

type Order struct {
	BaseModel
	MerchantID    string          `db:"merchant_id" json:"merchant_id"`
	CustomerName  string          `db:"customer_name" json:"customer_name"`
	Status        OrderStatus     `db:"status" json:"status"`
	StockReserved bool            `db:"stock_reserved" json:"stock_reserved"`
	TotalAmount   decimal.Decimal `db:"total_amount" json:"total_amount"`
	Lines         []OrderLine     `db:"-" json:"lines"`
}

type OrderLine struct {
	ID           string          `db:"id" json:"id"`
	OrderID      string          `db:"order_id" json:"order_id"`
	RecipeID     string          `db:"recipe_id" json:"recipe_id"`
	Position     int             `db:"position" json:"position"`
	Quantity     int64           `db:"quantity" json:"quantity"`
	SellingPrice decimal.Decimal `db:"selling_price" json:"selling_price"`
}

// StockReservation records the base units an active order holds on one item.
type StockReservation struct {
	OrderID   string    `db:"order_id"`
	ItemID    string    `db:"item_id"`
	BaseUnits float64   `db:"base_units"`
	CreatedAt time.Time `db:"created_at"`
}

// LinesTotal sums quantity × selling price over the lines.
func LinesTotal(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.SellingPrice.Mul(decimal.NewFromInt(l.Quantity)))
	}
	return total
}
