package model

import (
	"time"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/unit"
	"github.com/shopspring/decimal"
)

type ItemClass string

const (
	ItemClassConsumable ItemClass = "CONSUMABLE"
	ItemClassPackaging  ItemClass = "PACKAGING"
)

func (c ItemClass) Valid() bool {
	return c == ItemClassConsumable || c == ItemClassPackaging
}

// StockedItem is a purchasable inventory unit. The cumulative fields are the
// purchase ledger used for costing; OnHandBaseUnits is the physical stock.
type StockedItem struct {
	BaseModel
	MerchantID               string          `db:"merchant_id" json:"merchant_id"`
	Name                     string          `db:"name" json:"name"`
	ItemClass                ItemClass       `db:"item_class" json:"item_class"`
	Unit                     unit.Unit       `db:"unit" json:"unit"`
	PackWeight               float64         `db:"pack_weight" json:"pack_weight"`
	CumulativePacksPurchased int64           `db:"cumulative_packs_purchased" json:"cumulative_packs_purchased"`
	CumulativeCostSpent      decimal.Decimal `db:"cumulative_cost_spent" json:"cumulative_cost_spent"`
	OnHandBaseUnits          float64         `db:"on_hand_base_units" json:"on_hand_base_units"`
	LowStockThreshold        *float64        `db:"low_stock_threshold" json:"low_stock_threshold"` // Nullable
	LowStockUnit             *string         `db:"low_stock_unit" json:"low_stock_unit"`
}

// PackBaseUnits is the size of one purchased pack in base units. Packaging
// packs are always a single counted unit.
func (i *StockedItem) PackBaseUnits() (float64, error) {
	if i.ItemClass == ItemClassPackaging {
		return 1, nil
	}
	return unit.ToBaseUnits(i.PackWeight, i.Unit)
}

// HistoricalBaseUnits is the total quantity ever purchased, in base units.
func (i *StockedItem) HistoricalBaseUnits() (float64, error) {
	if i.ItemClass == ItemClassPackaging {
		return float64(i.CumulativePacksPurchased), nil
	}
	pack, err := i.PackBaseUnits()
	if err != nil {
		return 0, err
	}
	return unit.Round(float64(i.CumulativePacksPurchased) * pack), nil
}

// LowStockBaseUnits returns the alert threshold in base units, if one is set.
func (i *StockedItem) LowStockBaseUnits() (float64, bool, error) {
	if i.LowStockThreshold == nil {
		return 0, false, nil
	}
	u := i.Unit
	if i.LowStockUnit != nil && *i.LowStockUnit != "" {
		u = unit.Unit(*i.LowStockUnit)
	}
	base, err := unit.ToBaseUnits(*i.LowStockThreshold, u)
	if err != nil {
		return 0, false, err
	}
	return base, true, nil
}

// CheckLedger verifies the invariants every committed item must satisfy.
func (i *StockedItem) CheckLedger() error {
	if i.OnHandBaseUnits < 0 {
		return apperror.Newf(apperror.CodeInvalidQuantity, "item %s on-hand stock is negative (%v)", i.ID, i.OnHandBaseUnits)
	}
	if i.CumulativePacksPurchased < 0 {
		return apperror.Newf(apperror.CodeInvalidQuantity, "item %s purchased pack count is negative", i.ID)
	}
	if i.CumulativeCostSpent.IsNegative() {
		return apperror.Newf(apperror.CodeInvalidQuantity, "item %s cost spent is negative", i.ID)
	}
	if !i.Unit.Valid() {
		return apperror.WithMetadata(apperror.CodeInvalidUnit, "item "+i.ID+" has unsupported unit", map[string]string{"unit": string(i.Unit)})
	}
	return nil
}

const (
	MovementTypeRestock = "restock"
	MovementTypeReserve = "reserve"
	MovementTypeRelease = "release"
)

const (
	ReferenceTypeRestock = "restock"
	ReferenceTypeOrder   = "order"
)

type StockMovement struct {
	ID             string          `db:"id"`
	MerchantID     string          `db:"merchant_id"`
	ItemID         string          `db:"item_id"`
	MovementType   string          `db:"movement_type"`
	QuantityChange float64         `db:"quantity_change"`
	QuantityBefore float64         `db:"quantity_before"`
	QuantityAfter  float64         `db:"quantity_after"`
	CostChange     decimal.Decimal `db:"cost_change"`
	ReferenceType  *string         `db:"reference_type"`
	ReferenceID    *string         `db:"reference_id"`
	Notes          string          `db:"notes"`
	CreatedAt      time.Time       `db:"created_at"`
}
