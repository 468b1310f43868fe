package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	appmw "github.com/shinyyama/agri-market-backend/internal/middleware"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

// RoomServer keeps an upgraded connection in a negotiation room. *realtime.Hub implements it.
type RoomServer interface {
	Serve(w http.ResponseWriter, r *http.Request, room uint64) error
}

type RealtimeHandler struct {
	negotiations service.NegotiationService
	rooms        RoomServer
}

func NewRealtimeHandler(negotiations service.NegotiationService, rooms RoomServer) *RealtimeHandler {
	return &RealtimeHandler{negotiations: negotiations, rooms: rooms}
}

// Subscribe joins the caller to the live room of a negotiation they take part in.
func (h *RealtimeHandler) Subscribe(c echo.Context) error {
	uid := appmw.UID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return badID(c, "negotiation")
	}
	ctx := c.Request().Context()
	if _, err := h.negotiations.Get(ctx, id, uid); err != nil {
		return respondError(c, err)
	}
	if err := h.rooms.Serve(c.Response(), c.Request(), id); err != nil {
		// the upgrader has already answered the request
		zerolog.Ctx(ctx).Warn().Err(err).Uint64("negotiation_id", id).Msg("websocket upgrade failed")
	}
	return nil
}
