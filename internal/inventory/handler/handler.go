package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/costing"
	"github.com/fekuna/omnipos-stock-service/internal/inventory"
	"github.com/fekuna/omnipos-stock-service/internal/inventory/dto"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/pkg/rpc"
)

const ServiceName = "omnipos.stock.v1.InventoryService"

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

// Register exposes the handler on s.
func (h *InventoryHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(rpc.ServiceDesc(ServiceName,
		rpc.Unary(ServiceName, "CreateItem", h.CreateItem),
		rpc.Unary(ServiceName, "GetItem", h.GetItem),
		rpc.Unary(ServiceName, "ListItems", h.ListItems),
		rpc.Unary(ServiceName, "ListLowStock", h.ListLowStock),
		rpc.Unary(ServiceName, "Restock", h.Restock),
		rpc.Unary(ServiceName, "ListMovements", h.ListMovements),
	), h)
}

func (h *InventoryHandler) CreateItem(ctx context.Context, req *CreateItemRequest) (*Item, error) {
	item, err := h.uc.CreateItem(ctx, &dto.CreateItemInput{
		MerchantID:        auth.GetMerchantID(ctx),
		Name:              req.Name,
		ItemClass:         req.ItemClass,
		Unit:              req.Unit,
		PackWeight:        req.PackWeight,
		LowStockThreshold: req.LowStockThreshold,
		LowStockUnit:      req.LowStockUnit,
	})
	if err != nil {
		return nil, err
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) GetItem(ctx context.Context, req *GetItemRequest) (*Item, error) {
	item, err := h.uc.GetItem(ctx, req.ID, auth.GetMerchantID(ctx))
	if err != nil {
		return nil, err
	}
	return mapItem(item), nil
}

func (h *InventoryHandler) ListItems(ctx context.Context, req *ListItemsRequest) (*ListItemsResponse, error) {
	items, count, err := h.uc.ListItems(ctx, &dto.ItemFilters{
		MerchantID: auth.GetMerchantID(ctx),
		ItemClass:  req.ItemClass,
		Page:       int(req.Page),
		PageSize:   int(req.PageSize),
	})
	if err != nil {
		return nil, err
	}
	return &ListItemsResponse{Items: mapItems(items), Total: int32(count)}, nil
}

func (h *InventoryHandler) ListLowStock(ctx context.Context, req *ListLowStockRequest) (*ListItemsResponse, error) {
	items, count, err := h.uc.ListLowStock(ctx, auth.GetMerchantID(ctx), int(req.Page), int(req.PageSize))
	if err != nil {
		return nil, err
	}
	return &ListItemsResponse{Items: mapItems(items), Total: int32(count)}, nil
}

func (h *InventoryHandler) Restock(ctx context.Context, req *RestockRequest) (*RestockResponse, error) {
	cost, err := parseMoney(req.AddedCost)
	if err != nil {
		h.logger.Warn("rejected restock cost", zap.String("item_id", req.ItemID), zap.String("added_cost", req.AddedCost))
		return nil, err
	}

	res, err := h.uc.Restock(ctx, &dto.RestockInput{
		MerchantID:      auth.GetMerchantID(ctx),
		ItemID:          req.ItemID,
		AddedPacks:      req.AddedPacks,
		AddedPackWeight: req.AddedPackWeight,
		AddedUnit:       req.AddedUnit,
		AddedCost:       cost,
		IdempotencyKey:  req.IdempotencyKey,
		Notes:           req.Notes,
	})
	if err != nil {
		return nil, err
	}

	return &RestockResponse{
		Item:            mapItem(res.Item),
		PacksAdded:      res.PacksAdded,
		BaseUnitsAdded:  res.BaseUnitsAdded,
		RecostedRecipes: int32(len(res.Recosted)),
	}, nil
}

func (h *InventoryHandler) ListMovements(ctx context.Context, req *ListMovementsRequest) (*ListMovementsResponse, error) {
	mvs, count, err := h.uc.ListMovements(ctx, &dto.MovementFilters{
		MerchantID:   auth.GetMerchantID(ctx),
		ItemID:       req.ItemID,
		MovementType: req.MovementType,
		Page:         int(req.Page),
		PageSize:     int(req.PageSize),
	})
	if err != nil {
		return nil, err
	}

	movements := make([]*Movement, len(mvs))
	for i := range mvs {
		movements[i] = mapMovement(&mvs[i])
	}
	return &ListMovementsResponse{Movements: movements, Total: int32(count)}, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apperror.WithMetadata(apperror.CodeInvalidQuantity, "invalid amount "+s, map[string]string{"amount": s})
	}
	return d, nil
}

func mapItems(items []model.StockedItem) []*Item {
	out := make([]*Item, len(items))
	for i := range items {
		out[i] = mapItem(&items[i])
	}
	return out
}

func mapItem(m *model.StockedItem) *Item {
	if m == nil {
		return nil
	}

	avg, err := costing.AverageCostPerBaseUnit(m)
	if err != nil {
		avg = decimal.Zero
	}
	lowUnit := ""
	if m.LowStockUnit != nil {
		lowUnit = *m.LowStockUnit
	}

	return &Item{
		ID:                       m.ID,
		MerchantID:               m.MerchantID,
		Name:                     m.Name,
		ItemClass:                string(m.ItemClass),
		Unit:                     string(m.Unit),
		PackWeight:               m.PackWeight,
		CumulativePacksPurchased: m.CumulativePacksPurchased,
		CumulativeCostSpent:      m.CumulativeCostSpent.String(),
		OnHandBaseUnits:          m.OnHandBaseUnits,
		AverageCostPerBaseUnit:   avg.Round(costing.CostScale).String(),
		LowStockThreshold:        m.LowStockThreshold,
		LowStockUnit:             lowUnit,
		CreatedAt:                m.CreatedAt,
		UpdatedAt:                m.UpdatedAt,
	}
}

func mapMovement(m *model.StockMovement) *Movement {
	refType := ""
	if m.ReferenceType != nil {
		refType = *m.ReferenceType
	}
	refID := ""
	if m.ReferenceID != nil {
		refID = *m.ReferenceID
	}

	return &Movement{
		ID:             m.ID,
		ItemID:         m.ItemID,
		MovementType:   m.MovementType,
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		CostChange:     m.CostChange.String(),
		ReferenceType:  refType,
		ReferenceID:    refID,
		Notes:          m.Notes,
		CreatedAt:      m.CreatedAt,
	}
}
