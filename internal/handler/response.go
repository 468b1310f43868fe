package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/shinyyama/agri-market-backend/internal/ai"
	"github.com/shinyyama/agri-market-backend/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// respondError maps service errors to the JSON error envelope. Unexpected
// errors are logged and answered with a generic 500.
func respondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", err.Error()))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", err.Error()))
	case errors.Is(err, service.ErrAlreadyOrdered):
		return c.JSON(http.StatusConflict, NewErrorResponse("already_ordered", err.Error()))
	case errors.Is(err, service.ErrNotYourTurn):
		return c.JSON(http.StatusConflict, NewErrorResponse("not_your_turn", err.Error()))
	case errors.Is(err, service.ErrInvalidState):
		return c.JSON(http.StatusConflict, NewErrorResponse("invalid_state", err.Error()))
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", err.Error()))
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("validation_error", err.Error()))
	case errors.Is(err, ai.ErrNotConfigured):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "price advisor is not configured"))
	case errors.Is(err, ai.ErrParseFailed):
		return c.JSON(http.StatusBadGateway, NewErrorResponse("bad_gateway", "advisor reply was not a price"))
	}
	zerolog.Ctx(c.Request().Context()).Error().Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("request failed")
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "internal server error"))
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

func parseIDParam(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func badID(c echo.Context, what string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid "+what+" id"))
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
