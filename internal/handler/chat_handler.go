package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

type ChatHandler struct {
	svc    service.ChatService
	notify service.NotificationService
}

func NewChatHandler(svc service.ChatService, notify service.NotificationService) *ChatHandler {
	return &ChatHandler{svc: svc, notify: notify}
}

type ChatMessageResponse struct {
	ID          uint64 `json:"id"`
	ThreadID    uint64 `json:"threadId"`
	SenderUID   string `json:"senderUid"`
	SenderRole  string `json:"senderRole"`
	Content     string `json:"content"`
	MessageType string `json:"messageType"`
	IsRead      bool   `json:"isRead"`
	Timestamp   string `json:"timestamp"`
}

type ChatThreadResponse struct {
	ID              uint64  `json:"id"`
	NegotiationID   *uint64 `json:"negotiationId,omitempty"`
	SampleRequestID *uint64 `json:"sampleRequestId,omitempty"`
	CropID          uint64  `json:"cropId"`
	FarmerUID       string  `json:"farmerUid"`
	WholesalerUID   string  `json:"wholesalerUid"`
	LastMessage     *string `json:"lastMessage,omitempty"`
	LastMessageAt   *string `json:"lastMessageAt,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

type ThreadMessagesResponse struct {
	Thread   ChatThreadResponse    `json:"thread"`
	Messages []ChatMessageResponse `json:"messages"`
}

type PostChatMessageRequest struct {
	Content string `json:"content"`
}

func toChatMessageResponse(m *model.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:          m.ID,
		ThreadID:    m.ThreadID,
		SenderUID:   m.SenderUID,
		SenderRole:  string(m.SenderRole),
		Content:     m.Content,
		MessageType: string(m.MessageType),
		IsRead:      m.IsRead,
		Timestamp:   formatTime(m.CreatedAt),
	}
}

func toChatThreadResponse(t *model.ChatThread) ChatThreadResponse {
	resp := ChatThreadResponse{
		ID:              t.ID,
		NegotiationID:   t.NegotiationID,
		SampleRequestID: t.SampleRequestID,
		CropID:          t.CropID,
		FarmerUID:       t.FarmerUID,
		WholesalerUID:   t.WholesalerUID,
		LastMessageAt:   formatTimePtr(t.LastMessageAt),
		CreatedAt:       formatTime(t.CreatedAt),
	}
	if t.LastMessageAt != nil {
		last := t.LastMessageContent
		resp.LastMessage = &last
	}
	return resp
}

func toThreadMessagesResponse(t *model.ChatThread, msgs []model.ChatMessage) ThreadMessagesResponse {
	resp := ThreadMessagesResponse{
		Thread:   toChatThreadResponse(t),
		Messages: make([]ChatMessageResponse, 0, len(msgs)),
	}
	for i := range msgs {
		resp.Messages = append(resp.Messages, toChatMessageResponse(&msgs[i]))
	}
	return resp
}

// NegotiationMessages returns the thread bound to a negotiation and clears the
// caller's notifications for it.
func (h *ChatHandler) NegotiationMessages(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	ctx := c.Request().Context()
	thread, msgs, err := h.svc.GetThread(ctx, id, uid)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.notify.MarkByNegotiation(ctx, uid, id); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint64("negotiation_id", id).Msg("notifications not cleared")
	}
	return c.JSON(http.StatusOK, toThreadMessagesResponse(thread, msgs))
}

func (h *ChatHandler) PostToNegotiation(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	var req PostChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.PostMessage(c.Request().Context(), id, uid, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toChatMessageResponse(msg))
}

func (h *ChatHandler) ListThreads(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	threads, err := h.svc.ListThreads(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, err)
	}
	resp := make([]ChatThreadResponse, 0, len(threads))
	for i := range threads {
		resp = append(resp, toChatThreadResponse(&threads[i]))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"threads": resp,
	})
}

func (h *ChatHandler) ThreadMessages(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "thread")
	}
	thread, msgs, err := h.svc.GetThreadByID(c.Request().Context(), id, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toThreadMessagesResponse(thread, msgs))
}

func (h *ChatHandler) PostToThread(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "thread")
	}
	var req PostChatMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	msg, err := h.svc.PostMessageToThread(c.Request().Context(), id, uid, req.Content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, toChatMessageResponse(msg))
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "message")
	}
	if err := h.svc.MarkMessageRead(c.Request().Context(), id, uid); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
