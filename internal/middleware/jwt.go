package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/identity"
)

// Authenticate returns a middleware that verifies the Bearer token with
// v and stores the resulting claims in the context. Requests without a
// valid token are rejected with 401.
func Authenticate(v identity.Verifier) echo.MiddlewareFunc {
	return authenticate(v, true)
}

// OptionalAuth verifies a Bearer token when one is present and lets
// anonymous requests through. An invalid token is still rejected.
func OptionalAuth(v identity.Verifier) echo.MiddlewareFunc {
	return authenticate(v, false)
}

func authenticate(v identity.Verifier, required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if auth == "" && !required {
				return next(c)
			}
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")
			claims, err := v.Verify(c.Request().Context(), raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			setClaims(c, claims)
			return next(c)
		}
	}
}
