package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

const headerIdempotencyKey = "Idempotency-Key"

type NegotiationHandler struct {
	svc     service.NegotiationService
	advisor service.AdvisorService
}

func NewNegotiationHandler(svc service.NegotiationService, advisor service.AdvisorService) *NegotiationHandler {
	return &NegotiationHandler{svc: svc, advisor: advisor}
}

type CurrentOfferResponse struct {
	Amount    float64 `json:"amount"`
	OfferedBy string  `json:"offeredBy"`
}

type OfferResponse struct {
	Seq       int             `json:"seq"`
	OfferedBy string          `json:"offeredBy"`
	Amount    float64         `json:"amount"`
	Quantity  *model.Quantity `json:"quantity,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp string          `json:"timestamp"`
}

type NegotiationResponse struct {
	ID               uint64               `json:"id"`
	CropID           uint64               `json:"cropId"`
	FarmerUID        string               `json:"farmerUid"`
	WholesalerUID    string               `json:"wholesalerUid"`
	InitialPrice     float64              `json:"initialPrice"`
	CurrentOffer     CurrentOfferResponse `json:"currentOffer"`
	OfferHistory     []OfferResponse      `json:"offerHistory"`
	AgreedQuantity   model.Quantity       `json:"agreedQuantity"`
	Status           string               `json:"status"`
	FinalAgreedPrice *float64             `json:"finalAgreedPrice,omitempty"`
	TotalAmount      *float64             `json:"totalAmount,omitempty"`
	AcceptedBy       *string              `json:"acceptedBy,omitempty"`
	AcceptedAt       *string              `json:"acceptedAt,omitempty"`
	ClosedBy         *string              `json:"closedBy,omitempty"`
	CloseReason      string               `json:"closeReason,omitempty"`
	ClosedAt         *string              `json:"closedAt,omitempty"`
	ExpiresAt        string               `json:"expiresAt"`
	Version          uint64               `json:"version"`
	CreatedAt        string               `json:"createdAt"`
	UpdatedAt        string               `json:"updatedAt"`
}

func toOfferResponse(o model.Offer) OfferResponse {
	var qty *model.Quantity
	if !o.Quantity.IsZero() {
		q := o.Quantity
		qty = &q
	}
	return OfferResponse{
		Seq:       o.Seq,
		OfferedBy: string(o.OfferedBy),
		Amount:    o.Amount,
		Quantity:  qty,
		Message:   o.Message,
		Timestamp: formatTime(o.CreatedAt),
	}
}

func rolePtr(r *model.Role) *string {
	if r == nil {
		return nil
	}
	v := string(*r)
	return &v
}

func toNegotiationResponse(n *model.Negotiation) NegotiationResponse {
	history := make([]OfferResponse, 0, len(n.Offers))
	for _, o := range n.Offers {
		history = append(history, toOfferResponse(o))
	}
	return NegotiationResponse{
		ID:            n.ID,
		CropID:        n.CropID,
		FarmerUID:     n.FarmerUID,
		WholesalerUID: n.WholesalerUID,
		InitialPrice:  n.InitialPrice,
		CurrentOffer: CurrentOfferResponse{
			Amount:    n.CurrentOfferAmount,
			OfferedBy: string(n.CurrentOfferBy),
		},
		OfferHistory:     history,
		AgreedQuantity:   n.AgreedQuantity,
		Status:           string(n.Status),
		FinalAgreedPrice: n.FinalAgreedPrice,
		TotalAmount:      n.TotalAmount,
		AcceptedBy:       rolePtr(n.AcceptedBy),
		AcceptedAt:       formatTimePtr(n.AcceptedAt),
		ClosedBy:         rolePtr(n.ClosedBy),
		CloseReason:      n.CloseReason,
		ClosedAt:         formatTimePtr(n.ClosedAt),
		ExpiresAt:        formatTime(n.ExpiresAt),
		Version:          n.Version,
		CreatedAt:        formatTime(n.CreatedAt),
		UpdatedAt:        formatTime(n.UpdatedAt),
	}
}

type startNegotiationRequest struct {
	InitialPrice *float64       `json:"initialPrice"`
	Quantity     model.Quantity `json:"quantity"`
	Message      string         `json:"message"`
}

// Start opens a negotiation on the crop in the path for the calling wholesaler.
func (h *NegotiationHandler) Start(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	cropID, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "crop")
	}
	var req startNegotiationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	n, err := h.svc.Start(c.Request().Context(), service.StartNegotiationInput{
		CropID:        cropID,
		WholesalerUID: uid,
		InitialPrice:  req.InitialPrice,
		Quantity:      req.Quantity,
		Message:       req.Message,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toNegotiationResponse(n))
}

// List returns the caller's negotiations. ?role= overrides the token role for
// users who act on both sides.
func (h *NegotiationHandler) List(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	role := appmw.RoleOf(c)
	if q := c.QueryParam("role"); q != "" {
		role = model.Role(q)
	}
	list, err := h.svc.ListForUser(c.Request().Context(), uid, role)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]NegotiationResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toNegotiationResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"negotiations": resp,
	})
}

func (h *NegotiationHandler) Get(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	n, err := h.svc.Get(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toNegotiationResponse(n))
}

type makeOfferRequest struct {
	Amount   float64         `json:"amount"`
	Quantity *model.Quantity `json:"quantity"`
	Message  string          `json:"message"`
}

func (h *NegotiationHandler) MakeOffer(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	var req makeOfferRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	n, err := h.svc.MakeOffer(c.Request().Context(), service.MakeOfferInput{
		NegotiationID:  id,
		UID:            uid,
		Amount:         req.Amount,
		Quantity:       req.Quantity,
		Message:        req.Message,
		IdempotencyKey: c.Request().Header.Get(headerIdempotencyKey),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toNegotiationResponse(n))
}

func (h *NegotiationHandler) Accept(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	n, err := h.svc.Accept(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toNegotiationResponse(n))
}

func (h *NegotiationHandler) Reject(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	var body struct {
		Reason string `json:"reason"`
	}
	// an empty body means no reason
	_ = c.Bind(&body)
	n, err := h.svc.Reject(c.Request().Context(), id, uid, body.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toNegotiationResponse(n))
}

func (h *NegotiationHandler) Cancel(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	n, err := h.svc.Cancel(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toNegotiationResponse(n))
}

// Suggestion asks the price advisor for a counter-offer on behalf of the caller.
func (h *NegotiationHandler) Suggestion(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	s, err := h.advisor.Suggest(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"negotiationId":   id,
		"suggestedAmount": s.Amount,
		"model":           s.Model,
	})
}
