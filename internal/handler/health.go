package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health reports whether the service can reach its database. Redis is
// reported but never fails the check, since the service runs without
// it.
func Health(db *sql.DB, rdb *redis.Client) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "db": err.Error()})
		}
		body := echo.Map{"status": "ok", "redis": "disabled"}
		if rdb != nil {
			if err := rdb.Ping(ctx).Err(); err != nil {
				body["redis"] = "unreachable"
			} else {
				body["redis"] = "ok"
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}
