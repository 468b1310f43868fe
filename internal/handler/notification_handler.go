package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

type NotificationHandler struct {
	svc service.NotificationService
}

func NewNotificationHandler(svc service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type NotificationResponse struct {
	ID            uint64  `json:"id"`
	Type          string  `json:"type"`
	Title         string  `json:"title"`
	Body          string  `json:"body"`
	NegotiationID *uint64 `json:"negotiationId,omitempty"`
	ThreadID      *uint64 `json:"threadId,omitempty"`
	OrderID       *uint64 `json:"orderId,omitempty"`
	Read          bool    `json:"read"`
	CreatedAt     string  `json:"createdAt"`
}

func toNotificationResponse(n model.Notification) NotificationResponse {
	return NotificationResponse{
		ID:            n.ID,
		Type:          n.Type,
		Title:         n.Title,
		Body:          n.Body,
		NegotiationID: n.NegotiationID,
		ThreadID:      n.ThreadID,
		OrderID:       n.OrderID,
		Read:          n.ReadAt != nil,
		CreatedAt:     formatTime(n.CreatedAt),
	}
}

func (h *NotificationHandler) List(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	unreadOnly := c.QueryParam("unread_only") != "false"
	limit := 20
	if lStr := c.QueryParam("limit"); lStr != "" {
		if lParsed, err := strconv.Atoi(lStr); err == nil && lParsed > 0 {
			limit = lParsed
		}
	}
	list, unreadCount, err := h.svc.List(c.Request().Context(), uid, unreadOnly, limit)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		resp = append(resp, toNotificationResponse(n))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"notifications": resp,
		"unreadCount":   unreadCount,
	})
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	if err := h.svc.MarkAllRead(c.Request().Context(), uid); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
