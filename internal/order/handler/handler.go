package handler

import (
	"context"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/fekuna/omnipos-stock-service/internal/apperror"
	"github.com/fekuna/omnipos-stock-service/internal/auth"
	"github.com/fekuna/omnipos-stock-service/internal/model"
	"github.com/fekuna/omnipos-stock-service/internal/order"
	"github.com/fekuna/omnipos-stock-service/internal/order/dto"
	"github.com/fekuna/omnipos-stock-service/pkg/logger"
	"github.com/fekuna/omnipos-stock-service/pkg/rpc"
)

const ServiceName = "omnipos.stock.v1.OrderService"

type OrderHandler struct {
	uc     order.UseCase
	logger logger.ZapLogger
}

func NewOrderHandler(uc order.UseCase, log logger.ZapLogger) *OrderHandler {
	return &OrderHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *OrderHandler) Register(s grpc.ServiceRegistrar) {
	s.RegisterService(rpc.ServiceDesc(ServiceName,
		rpc.Unary(ServiceName, "CreateOrder", h.CreateOrder),
		rpc.Unary(ServiceName, "UpdateOrder", h.UpdateOrder),
		rpc.Unary(ServiceName, "UpdateOrderStatus", h.UpdateOrderStatus),
		rpc.Unary(ServiceName, "GetOrder", h.GetOrder),
		rpc.Unary(ServiceName, "ListOrders", h.ListOrders),
		rpc.Unary(ServiceName, "CancelOrder", h.CancelOrder),
		rpc.Unary(ServiceName, "DeleteOrder", h.DeleteOrder),
	), h)
}

func (h *OrderHandler) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*Order, error) {
	lines, err := toLineInputs(req.Lines)
	if err != nil {
		return nil, err
	}

	o, err := h.uc.CreateOrder(ctx, &dto.CreateOrderInput{
		MerchantID:   auth.GetMerchantID(ctx),
		CustomerName: req.CustomerName,
		Status:       req.Status,
		Lines:        lines,
	})
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

func (h *OrderHandler) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*Order, error) {
	input := &dto.UpdateOrderInput{
		ID:           req.ID,
		MerchantID:   auth.GetMerchantID(ctx),
		CustomerName: req.CustomerName,
		Status:       req.Status,
	}
	if req.ReplaceLines {
		lines, err := toLineInputs(req.Lines)
		if err != nil {
			return nil, err
		}
		if lines == nil {
			lines = []dto.LineInput{}
		}
		input.Lines = lines
	}

	o, err := h.uc.UpdateOrder(ctx, input)
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

func (h *OrderHandler) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*Order, error) {
	o, err := h.uc.UpdateOrderStatus(ctx, &dto.UpdateStatusInput{
		ID:         req.ID,
		MerchantID: auth.GetMerchantID(ctx),
		Status:     req.Status,
	})
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

func (h *OrderHandler) GetOrder(ctx context.Context, req *GetOrderRequest) (*Order, error) {
	o, err := h.uc.GetOrder(ctx, req.ID, auth.GetMerchantID(ctx))
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

func (h *OrderHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	orders, count, err := h.uc.ListOrders(ctx, &dto.OrderFilters{
		MerchantID: auth.GetMerchantID(ctx),
		Status:     req.Status,
		Page:       int(req.Page),
		PageSize:   int(req.PageSize),
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Order, len(orders))
	for i := range orders {
		out[i] = mapOrder(&orders[i])
	}
	return &ListOrdersResponse{Orders: out, Total: int32(count)}, nil
}

func (h *OrderHandler) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*Order, error) {
	o, err := h.uc.CancelOrder(ctx, req.ID, auth.GetMerchantID(ctx))
	if err != nil {
		return nil, err
	}
	return mapOrder(o), nil
}

func (h *OrderHandler) DeleteOrder(ctx context.Context, req *DeleteOrderRequest) (*DeleteOrderResponse, error) {
	if err := h.uc.DeleteOrder(ctx, req.ID, auth.GetMerchantID(ctx)); err != nil {
		return nil, err
	}
	return &DeleteOrderResponse{Success: true}, nil
}

func toLineInputs(in []*OrderLine) ([]dto.LineInput, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]dto.LineInput, 0, len(in))
	for _, l := range in {
		if l == nil {
			continue
		}
		price := decimal.Zero
		if l.SellingPrice != "" {
			p, err := decimal.NewFromString(l.SellingPrice)
			if err != nil {
				return nil, apperror.WithMetadata(apperror.CodeInvalidQuantity,
					"invalid selling price "+l.SellingPrice, map[string]string{"recipe_id": l.RecipeID})
			}
			price = p
		}
		out = append(out, dto.LineInput{RecipeID: l.RecipeID, Quantity: l.Quantity, SellingPrice: price})
	}
	return out, nil
}

func mapOrder(m *model.Order) *Order {
	if m == nil {
		return nil
	}
	lines := make([]*OrderLine, len(m.Lines))
	for i, l := range m.Lines {
		lines[i] = &OrderLine{RecipeID: l.RecipeID, Quantity: l.Quantity, SellingPrice: l.SellingPrice.String()}
	}
	return &Order{
		ID:            m.ID,
		MerchantID:    m.MerchantID,
		CustomerName:  m.CustomerName,
		Status:        string(m.Status),
		StockReserved: m.StockReserved,
		TotalAmount:   m.TotalAmount.String(),
		Lines:         lines,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
