package middleware

// identity.go keeps the verified claims in the echo context. Handlers
// read them back with Claims; the rate limiter and request logger use
// the owner id.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/identity"
)

const (
	claimsKey = "claims"
	userIDKey = "user_id"
)

func setClaims(c echo.Context, claims identity.Claims) {
	c.Set(claimsKey, claims)
	c.Set(userIDKey, claims.OwnerID())
}

// Claims returns the verified claims of the request, if any.
func Claims(c echo.Context) (identity.Claims, bool) {
	claims, ok := c.Get(claimsKey).(identity.Claims)
	return claims, ok
}

// userID returns the owner id of the caller, or "anon".
func userID(c echo.Context) string {
	if s, ok := c.Get(userIDKey).(string); ok && s != "" {
		return s
	}
	return "anon"
}
