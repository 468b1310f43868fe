package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

type CropHandler struct {
	svc service.CropService
}

func NewCropHandler(svc service.CropService) *CropHandler {
	return &CropHandler{svc: svc}
}

type CropResponse struct {
	ID                uint64  `json:"id"`
	FarmerUID         string  `json:"farmerUid"`
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Season            string  `json:"season,omitempty"`
	ReferencePrice    float64 `json:"referencePrice"`
	Unit              string  `json:"unit"`
	AvailableQuantity float64 `json:"availableQuantity"`
	SampleRequests    int64   `json:"sampleRequests"`
	CreatedAt         string  `json:"createdAt"`
}

func toCropResponse(c *model.Crop) CropResponse {
	return CropResponse{
		ID:                c.ID,
		FarmerUID:         c.FarmerUID,
		Name:              c.Name,
		Category:          c.Category,
		Season:            c.Season,
		ReferencePrice:    c.ReferencePrice,
		Unit:              c.Unit,
		AvailableQuantity: c.AvailableQuantity,
		SampleRequests:    c.SampleRequests,
		CreatedAt:         formatTime(c.CreatedAt),
	}
}

func (h *CropHandler) List(c echo.Context) error {
	limit := 20
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 {
			limit = lParsed
		}
	}
	offset := 0
	if oStr := c.QueryParam("offset"); oStr != "" {
		if oParsed, err := strconv.Atoi(oStr); err == nil && oParsed >= 0 {
			offset = oParsed
		}
	}
	crops, total, err := h.svc.List(c.Request().Context(), limit, offset, c.QueryParam("category"))
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]CropResponse, 0, len(crops))
	for i := range crops {
		resp = append(resp, toCropResponse(&crops[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"crops": resp,
		"total": total,
	})
}

func (h *CropHandler) Get(c echo.Context) error {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "crop")
	}
	crop, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toCropResponse(crop))
}
