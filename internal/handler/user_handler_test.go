package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errNoSuchUser = errors.New("no such user")

type stubUsers map[string]*auth.UserRecord

func (s stubUsers) GetUser(_ context.Context, uid string) (*auth.UserRecord, error) {
	if uid == "broken" {
		return nil, errors.New("identity backend unavailable")
	}
	if u, ok := s[uid]; ok {
		return u, nil
	}
	return nil, errNoSuchUser
}

func TestGetPublicProfile(t *testing.T) {
	users := stubUsers{
		farmerUID: {
			UserInfo:     &auth.UserInfo{UID: farmerUID, DisplayName: "Ramesh Patil", PhotoURL: "https://example.com/r.png"},
			CustomClaims: map[string]interface{}{"role": "farmer", "verified": true},
		},
		"guest-1": {
			UserInfo:     &auth.UserInfo{UID: "guest-1", DisplayName: "Guest"},
			CustomClaims: map[string]interface{}{"role": "admin"},
		},
	}
	h := NewUserHandler(users)
	h.notFound = func(err error) bool { return errors.Is(err, errNoSuchUser) }

	e := echo.New()
	e.GET("/api/users/:uid/public", h.GetPublic)
	get := func(uid string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/"+uid+"/public", nil))
		return rec
	}

	rec := get(farmerUID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	profile := decode[PublicProfileResponse](t, rec)
	assert.Equal(t, "Ramesh Patil", profile.DisplayName)
	assert.Equal(t, "farmer", profile.Role)
	assert.True(t, profile.Verified)
	require.NotNil(t, profile.PhotoURL)

	rec = get("guest-1")
	require.Equal(t, http.StatusOK, rec.Code)
	profile = decode[PublicProfileResponse](t, rec)
	assert.Empty(t, profile.Role)
	assert.False(t, profile.Verified)
	assert.Nil(t, profile.PhotoURL)

	rec = get("nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))

	rec = get("broken")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", errorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "identity backend")
}
