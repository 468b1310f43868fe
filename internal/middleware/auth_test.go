package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVerifier map[string]*auth.Token

func (f fakeVerifier) VerifyIDToken(_ context.Context, idToken string) (*auth.Token, error) {
	if tok, ok := f[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("bad token")
}

func newAuthEcho() *echo.Echo {
	m := NewAuthMiddlewareWithVerifier(fakeVerifier{
		"farmer-token": {UID: "farmer-1", Claims: map[string]interface{}{"role": "farmer", "verified": true}},
		"buyer-token":  {UID: "wholesaler-1", Claims: map[string]interface{}{"role": "wholesaler"}},
	})
	e := echo.New()
	whoami := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"uid": UID(c), "role": string(RoleOf(c))})
	}
	e.GET("/me", whoami, m.RequireAuth)
	e.GET("/farm", whoami, m.RequireAuth, RequireRole(model.RoleFarmer))
	e.GET("/verified", whoami, m.RequireAuth, RequireVerified)
	return e
}

func serve(e *echo.Echo, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	e := newAuthEcho()

	rec := serve(e, "/me", "farmer-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":"farmer-1","role":"farmer"}`, rec.Body.String())

	rec = serve(e, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)

	rec = serve(e, "/me", "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"invalid_token"`)
}

func TestQueryTokenOnlyForWebsocket(t *testing.T) {
	e := newAuthEcho()

	req := httptest.NewRequest(http.MethodGet, "/me?token=farmer-token", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/me?token=farmer-token", nil)
	req.Header.Set(echo.HeaderConnection, "Upgrade")
	req.Header.Set(echo.HeaderUpgrade, "websocket")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleAndVerified(t *testing.T) {
	e := newAuthEcho()

	assert.Equal(t, http.StatusOK, serve(e, "/farm", "farmer-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, "/farm", "buyer-token").Code)

	assert.Equal(t, http.StatusOK, serve(e, "/verified", "farmer-token").Code)
	rec := serve(e, "/verified", "buyer-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_verified")
}
