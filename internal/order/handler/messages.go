package handler

import "time"

type OrderLine struct {
	RecipeID     string `msgpack:"recipe_id"`
	Quantity     int64  `msgpack:"quantity"`
	SellingPrice string `msgpack:"selling_price"`
}

type CreateOrderRequest struct {
	CustomerName string       `msgpack:"customer_name"`
	Status       string       `msgpack:"status,omitempty"`
	Lines        []*OrderLine `msgpack:"lines"`
}

type UpdateOrderRequest struct {
	ID           string  `msgpack:"id"`
	CustomerName *string `msgpack:"customer_name,omitempty"`
	Status       *string `msgpack:"status,omitempty"`
	// ReplaceLines swaps the order's lines for Lines.
	ReplaceLines bool         `msgpack:"replace_lines"`
	Lines        []*OrderLine `msgpack:"lines,omitempty"`
}

type UpdateOrderStatusRequest struct {
	ID     string `msgpack:"id"`
	Status string `msgpack:"status"`
}

type GetOrderRequest struct {
	ID string `msgpack:"id"`
}

type CancelOrderRequest struct {
	ID string `msgpack:"id"`
}

type DeleteOrderRequest struct {
	ID string `msgpack:"id"`
}

type DeleteOrderResponse struct {
	Success bool `msgpack:"success"`
}

type ListOrdersRequest struct {
	Status   string `msgpack:"status,omitempty"`
	Page     int32  `msgpack:"page"`
	PageSize int32  `msgpack:"page_size"`
}

type ListOrdersResponse struct {
	Orders []*Order `msgpack:"orders"`
	Total  int32    `msgpack:"total"`
}

type Order struct {
	ID            string       `msgpack:"id"`
	MerchantID    string       `msgpack:"merchant_id"`
	CustomerName  string       `msgpack:"customer_name"`
	Status        string       `msgpack:"status"`
	StockReserved bool         `msgpack:"stock_reserved"`
	TotalAmount   string       `msgpack:"total_amount"`
	Lines         []*OrderLine `msgpack:"lines"`
	CreatedAt     time.Time    `msgpack:"created_at"`
	UpdatedAt     time.Time    `msgpack:"updated_at"`
}
