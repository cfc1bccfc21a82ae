package middleware

// identity.go holds the echo context keys written by JWTAuth and the helpers
// handlers and other middleware use to read them back.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-cms/internal/utils"
)

const (
	ctxUserID  = "user_id"
	ctxTokenID = "token_id"
	ctxClaims  = "claims"
)

func setIdentity(c echo.Context, claims utils.Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxTokenID, claims.TokenID)
	c.Set(ctxClaims, claims)
}

// UserID returns the authenticated user id, or "" on unauthenticated routes.
func UserID(c echo.Context) string {
	if s, ok := c.Get(ctxUserID).(string); ok {
		return s
	}
	return ""
}

// ClaimsFrom returns the verified token claims attached by JWTAuth.
func ClaimsFrom(c echo.Context) (utils.Claims, bool) {
	cl, ok := c.Get(ctxClaims).(utils.Claims)
	return cl, ok
}

// currentUserID is UserID with "anon" standing in for guests, used in rate
// limit keys.
func currentUserID(c echo.Context) string {
	if id := UserID(c); id != "" {
		return id
	}
	return "anon"
}
