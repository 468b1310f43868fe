package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

type SampleHandler struct {
	svc service.SampleService
}

func NewSampleHandler(svc service.SampleService) *SampleHandler {
	return &SampleHandler{svc: svc}
}

type SampleRequestResponse struct {
	ID            uint64  `json:"id"`
	CropID        uint64  `json:"cropId"`
	FarmerUID     string  `json:"farmerUid"`
	WholesalerUID string  `json:"wholesalerUid"`
	Status        string  `json:"status"`
	Message       string  `json:"message,omitempty"`
	ThreadID      *uint64 `json:"threadId,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

func toSampleRequestResponse(sr *model.SampleRequest) SampleRequestResponse {
	return SampleRequestResponse{
		ID:            sr.ID,
		CropID:        sr.CropID,
		FarmerUID:     sr.FarmerUID,
		WholesalerUID: sr.WholesalerUID,
		Status:        string(sr.Status),
		Message:       sr.Message,
		ThreadID:      sr.ThreadID,
		CreatedAt:     formatTime(sr.CreatedAt),
		UpdatedAt:     formatTime(sr.UpdatedAt),
	}
}

func (h *SampleHandler) Request(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	cropID, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "crop")
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	sr, err := h.svc.Request(c.Request().Context(), cropID, uid, body.Message)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toSampleRequestResponse(sr))
}

func (h *SampleHandler) ListMine(c echo.Context) error {
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
	resp := make([]SampleRequestResponse, 0, len(list))
	for i := range list {
		resp = append(resp, toSampleRequestResponse(&list[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"samples": resp,
	})
}

// Accept approves a pending sample request and opens its chat thread.
func (h *SampleHandler) Accept(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "sample")
	}
	sr, thread, err := h.svc.Accept(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sample": toSampleRequestResponse(sr),
		"thread": toChatThreadResponse(thread),
	})
}

func (h *SampleHandler) Reject(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "sample")
	}
	sr, err := h.svc.Reject(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toSampleRequestResponse(sr))
}
