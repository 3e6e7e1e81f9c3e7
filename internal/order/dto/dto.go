package dto

import "time"

type OrderFilters struct {
	MerchantID string
	Status     string
	Page       int
	PageSize   int
}

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderUpdated       = "OrderUpdated"
	EventOrderDeleted       = "OrderDeleted"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// OrderEvent is published after an order change commits.
type OrderEvent struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	OrderID       string    `json:"order_id"`
	MerchantID    string    `json:"merchant_id"`
	Status        string    `json:"status"`
	StockReserved bool      `json:"stock_reserved"`
	TotalAmount   string    `json:"total_amount"`
	Timestamp     time.Time `json:"timestamp"`
}
