package middleware

import (
	"context"
	"net/http"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/agri-market-backend/internal/model"
	"google.golang.org/api/option"
)

const (
	ctxUID      = "uid"
	ctxRole     = "role"
	ctxVerified = "verified"
)

// TokenVerifier checks Firebase ID tokens. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type AuthMiddleware struct {
	verifier   TokenVerifier
	authClient *auth.Client
}

func NewAuthMiddleware(ctx context.Context, projectID, credentialsFile string) (*AuthMiddleware, error) {
	if projectID == "" {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "FIREBASE_PROJECT_ID is not set")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &AuthMiddleware{verifier: client, authClient: client}, nil
}

func NewAuthMiddlewareWithVerifier(v TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: v}
}

// RequireAuth verifies the bearer token and stores uid, role and verified on
// the echo context. Websocket clients may pass the token as ?token= instead.
func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			return c.JSON(http.StatusUnauthorized, errorBody("unauthorized", "missing token"))
		}
		token, err := m.verifier.VerifyIDToken(c.Request().Context(), tokenStr)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, errorBody("invalid_token", "token verification failed"))
		}
		c.Set(ctxUID, token.UID)
		role, _ := token.Claims["role"].(string)
		c.Set(ctxRole, model.Role(role))
		verified, _ := token.Claims["verified"].(bool)
		c.Set(ctxVerified, verified)
		return next(c)
	}
}

func (m *AuthMiddleware) Client() *auth.Client {
	return m.authClient
}

// RequireRole lets through callers whose token carries one of roles.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role := RoleOf(c)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, errorBody("forbidden", "role not allowed"))
		}
	}
}

// RequireVerified rejects accounts that have not passed verification yet.
func RequireVerified(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if v, _ := c.Get(ctxVerified).(bool); !v {
			return c.JSON(http.StatusForbidden, errorBody("not_verified", "account is not verified"))
		}
		return next(c)
	}
}

func UID(c echo.Context) string {
	uid, _ := c.Get(ctxUID).(string)
	return uid
}

func RoleOf(c echo.Context) model.Role {
	role, _ := c.Get(ctxRole).(model.Role)
	return role
}

// SetIdentity stores an already-authenticated identity on c.
func SetIdentity(c echo.Context, uid string, role model.Role, verified bool) {
	c.Set(ctxUID, uid)
	c.Set(ctxRole, role)
	c.Set(ctxVerified, verified)
}

func bearerToken(c echo.Context) string {
	authz := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	if c.IsWebSocket() {
		return c.QueryParam("token")
	}
	return ""
}

func errorBody(code, message string) map[string]map[string]string {
	return map[string]map[string]string{
		"error": {"code": code, "message": message},
	}
}
