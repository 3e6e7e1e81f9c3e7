package handler

import "time"

type CreateItemRequest struct {
	Name              string   `msgpack:"name"`
	ItemClass         string   `msgpack:"item_class"`
	Unit              string   `msgpack:"unit"`
	PackWeight        float64  `msgpack:"pack_weight"`
	LowStockThreshold *float64 `msgpack:"low_stock_threshold,omitempty"`
	LowStockUnit      string   `msgpack:"low_stock_unit,omitempty"`
}

type GetItemRequest struct {
	ID string `msgpack:"id"`
}

type ListItemsRequest struct {
	ItemClass string `msgpack:"item_class,omitempty"`
	Page      int32  `msgpack:"page"`
	PageSize  int32  `msgpack:"page_size"`
}

type ListLowStockRequest struct {
	Page     int32 `msgpack:"page"`
	PageSize int32 `msgpack:"page_size"`
}

type ListItemsResponse struct {
	Items []*Item `msgpack:"items"`
	Total int32   `msgpack:"total"`
}

type RestockRequest struct {
	ItemID          string  `msgpack:"item_id"`
	AddedPacks      int64   `msgpack:"added_packs"`
	AddedPackWeight float64 `msgpack:"added_pack_weight,omitempty"`
	AddedUnit       string  `msgpack:"added_unit,omitempty"`
	AddedCost       string  `msgpack:"added_cost"`
	IdempotencyKey  string  `msgpack:"idempotency_key,omitempty"`
	Notes           string  `msgpack:"notes,omitempty"`
}

type RestockResponse struct {
	Item            *Item   `msgpack:"item"`
	PacksAdded      int64   `msgpack:"packs_added"`
	BaseUnitsAdded  float64 `msgpack:"base_units_added"`
	RecostedRecipes int32   `msgpack:"recosted_recipes"`
}

type ListMovementsRequest struct {
	ItemID       string `msgpack:"item_id,omitempty"`
	MovementType string `msgpack:"movement_type,omitempty"`
	Page         int32  `msgpack:"page"`
	PageSize     int32  `msgpack:"page_size"`
}

type ListMovementsResponse struct {
	Movements []*Movement `msgpack:"movements"`
	Total     int32       `msgpack:"total"`
}

type Item struct {
	ID                       string    `msgpack:"id"`
	MerchantID               string    `msgpack:"merchant_id"`
	Name                     string    `msgpack:"name"`
	ItemClass                string    `msgpack:"item_class"`
	Unit                     string    `msgpack:"unit"`
	PackWeight               float64   `msgpack:"pack_weight"`
	CumulativePacksPurchased int64     `msgpack:"cumulative_packs_purchased"`
	CumulativeCostSpent      string    `msgpack:"cumulative_cost_spent"`
	OnHandBaseUnits          float64   `msgpack:"on_hand_base_units"`
	AverageCostPerBaseUnit   string    `msgpack:"average_cost_per_base_unit"`
	LowStockThreshold        *float64  `msgpack:"low_stock_threshold,omitempty"`
	LowStockUnit             string    `msgpack:"low_stock_unit,omitempty"`
	CreatedAt                time.Time `msgpack:"created_at"`
	UpdatedAt                time.Time `msgpack:"updated_at"`
}

type Movement struct {
	ID             string    `msgpack:"id"`
	ItemID         string    `msgpack:"item_id"`
	MovementType   string    `msgpack:"movement_type"`
	QuantityChange float64   `msgpack:"quantity_change"`
	QuantityBefore float64   `msgpack:"quantity_before"`
	QuantityAfter  float64   `msgpack:"quantity_after"`
	CostChange     string    `msgpack:"cost_change"`
	ReferenceType  string    `msgpack:"reference_type,omitempty"`
	ReferenceID    string    `msgpack:"reference_id,omitempty"`
	Notes          string    `msgpack:"notes,omitempty"`
	CreatedAt      time.Time `msgpack:"created_at"`
}
