package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

type OrderHandler struct {
	svc service.OrderService
}

func NewOrderHandler(svc service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type OrderResponse struct {
	ID            uint64         `json:"id"`
	NegotiationID uint64         `json:"negotiationId"`
	CropID        uint64         `json:"cropId"`
	FarmerUID     string         `json:"farmerUid"`
	WholesalerUID string         `json:"wholesalerUid"`
	PricePerUnit  float64        `json:"pricePerUnit"`
	Quantity      model.Quantity `json:"quantity"`
	TotalAmount   float64        `json:"totalAmount"`
	Status        string         `json:"status"`
	AgreementURL  string         `json:"agreementUrl,omitempty"`
	ShippedAt     *string        `json:"shippedAt,omitempty"`
	DeliveredAt   *string        `json:"deliveredAt,omitempty"`
	CancelledAt   *string        `json:"cancelledAt,omitempty"`
	CreatedAt     string         `json:"createdAt"`
	UpdatedAt     string         `json:"updatedAt"`
}

func toOrderResponse(o *model.Order) OrderResponse {
	return OrderResponse{
		ID:            o.ID,
		NegotiationID: o.NegotiationID,
		CropID:        o.CropID,
		FarmerUID:     o.FarmerUID,
		WholesalerUID: o.WholesalerUID,
		PricePerUnit:  o.PricePerUnit,
		Quantity:      o.Quantity,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		AgreementURL:  o.AgreementURL,
		ShippedAt:     formatTimePtr(o.ShippedAt),
		DeliveredAt:   formatTimePtr(o.DeliveredAt),
		CancelledAt:   formatTimePtr(o.CancelledAt),
		CreatedAt:     formatTime(o.CreatedAt),
		UpdatedAt:     formatTime(o.UpdatedAt),
	}
}

// CreateFromNegotiation places the order for an accepted negotiation. A second
// attempt answers 409 with the existing order id.
func (h *OrderHandler) CreateFromNegotiation(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	o, err := h.svc.CreateFromNegotiation(c.Request().Context(), id, uid)
	if errors.Is(err, service.ErrAlreadyOrdered) && o != nil {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":   errorPayload{Code: "already_ordered", Message: "an order already exists for this negotiation"},
			"orderId": o.ID,
		})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) Get(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "order")
	}
	o, err := h.svc.Get(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	role := appmw.RoleOf(c)
	if q := c.QueryParam("role"); q != "" {
		role = model.Role(q)
	}
	list, err := h.svc.ListMine(c.Request().Context(), uid, role)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]OrderResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toOrderResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"orders": resp,
	})
}

func (h *OrderHandler) MarkShipped(c echo.Context) error {
	return h.transition(c, h.svc.MarkShipped)
}

func (h *OrderHandler) MarkDelivered(c echo.Context) error {
	return h.transition(c, h.svc.MarkDelivered)
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel)
}

type orderStep func(ctx context.Context, orderID uint64, uid string) (*model.Order, error)

func (h *OrderHandler) transition(c echo.Context, step orderStep) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "order")
	}
	o, err := step(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderResponse(o))
}
