package handler

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/agri-market-backend/internal/model"
)

// UserLookup reads Firebase user records. *auth.Client implements it.
type UserLookup interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

type UserHandler struct {
	users    UserLookup
	notFound func(error) bool
}

func NewUserHandler(users UserLookup) *UserHandler {
	return &UserHandler{users: users, notFound: auth.IsUserNotFound}
}

// PublicProfileResponse is what a counterparty may see about a trader.
type PublicProfileResponse struct {
	UID         string  `json:"uid"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
	Role        string  `json:"role,omitempty"`
	Verified    bool    `json:"verified"`
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	user, err := h.users.GetUser(c.Request().Context(), uid)
	if err != nil {
		if h.notFound(err) {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "user not found"))
		}
		return respondError(c, err)
	}
	resp := PublicProfileResponse{UID: user.UID, DisplayName: user.DisplayName}
	if user.PhotoURL != "" {
		resp.PhotoURL = &user.PhotoURL
	}
	if role := model.Role(claimString(user.CustomClaims, "role")); role.Valid() {
		resp.Role = string(role)
	}
	resp.Verified, _ = user.CustomClaims["verified"].(bool)
	return c.JSON(http.StatusOK, resp)
}

func claimString(claims map[string]interface{}, key string) string {
	v, _ := claims[key].(string)
	return v
}
