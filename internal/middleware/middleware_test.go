package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/festival-ticketing/internal/cache"
	"github.com/iliyamo/festival-ticketing/internal/config"
	"github.com/iliyamo/festival-ticketing/internal/identity"
)

const secret = "middleware-secret"

func serve(mw echo.MiddlewareFunc, h echo.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(req.URL.Path)
	if err := mw(h)(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func ok(c echo.Context) error { return c.String(http.StatusOK, userID(c)) }

func bearer(t *testing.T, c identity.Claims) string {
	t.Helper()
	tok, err := identity.IssueToken(secret, c, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestAuthenticate(t *testing.T) {
	mw := Authenticate(identity.NewHMACVerifier(secret))

	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(mw, ok, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(mw, ok, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	req.Header.Set("Authorization", bearer(t, identity.Claims{Sub: "s1", OID: "o1"}))
	rec := serve(mw, ok, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "o1", rec.Body.String())
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	mw := OptionalAuth(identity.NewHMACVerifier(secret))

	rec := serve(mw, ok, httptest.NewRequest(http.MethodGet, "/v1/groups", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anon", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/v1/groups", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, serve(mw, ok, req).Code)
}

func TestRequireRole(t *testing.T) {
	roles := identity.MustDefaultResolver()
	dir := identity.DefaultDirectory()
	auth := Authenticate(identity.NewHMACVerifier(secret))
	gate := RequireRole(roles, identity.RoleAdmin)
	chain := func(next echo.HandlerFunc) echo.HandlerFunc { return auth(gate(next)) }

	assert.Equal(t, http.StatusUnauthorized,
		serve(gate, ok, httptest.NewRequest(http.MethodPost, "/v1/events/import", nil)).Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/events/import", nil)
	req.Header.Set("Authorization", bearer(t, identity.Claims{Sub: "s1",
		Groups: []string{dir.Memberships[identity.RoleGuest]}}))
	assert.Equal(t, http.StatusForbidden, serve(chain, ok, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/v1/events/import", nil)
	req.Header.Set("Authorization", bearer(t, identity.Claims{Sub: "s2",
		Groups: []string{dir.Memberships[identity.RoleAdmin]}}))
	assert.Equal(t, http.StatusOK, serve(chain, ok, req).Code)
}

func TestLocalTokenBucket(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	mw := NewTokenBucket(cfg, nil, nil)
	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/votes", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(mw, ok, req)
	}

	first := call("10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)

	blocked := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	// buckets are per key
	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code)
}

func TestDisabledTokenBucketPassesThrough(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{}, nil, nil)
	for range 5 {
		assert.Equal(t, http.StatusOK, serve(mw, ok, httptest.NewRequest(http.MethodPost, "/v1/votes", nil)).Code)
	}
}

func TestCacheKeyTracksGeneration(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	e := echo.New()
	newCtx := func(target string) echo.Context {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/v1/groups/:id")
		return c
	}

	a := cacheKeyFrom(cfg, newCtx("/v1/groups/club1"), "0")
	assert.Equal(t, a, cacheKeyFrom(cfg, newCtx("/v1/groups/club1"), "0"))
	assert.NotEqual(t, a, cacheKeyFrom(cfg, newCtx("/v1/groups/club1"), "1"))
	assert.NotEqual(t, a, cacheKeyFrom(cfg, newCtx("/v1/groups/club2"), "0"))
}

func TestResponseCacheWithoutRedisPassesThrough(t *testing.T) {
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, Prefix: "cache"}
	mw := NewRedisCache(cfg, cache.New(nil, cfg, nil))
	calls := 0
	h := func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "fresh")
	}
	for range 2 {
		rec := serve(mw, h, httptest.NewRequest(http.MethodGet, "/v1/groups", nil))
		assert.Equal(t, "fresh", rec.Body.String())
		assert.Empty(t, rec.Header().Get("X-Cache"))
	}
	assert.Equal(t, 2, calls)
}
