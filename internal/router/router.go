// Package router registers the API routes on an echo instance.
package router

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/festival-ticketing/internal/handler"
)

// RegisterRoutes registers routes that need no authentication and no
// handler state beyond the datastores.
func RegisterRoutes(e *echo.Echo, db *sql.DB, rdb *redis.Client) {
	e.GET("/healthz", handler.Health(db, rdb))
}

// RegisterPublic registers the unauthenticated browse endpoints.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler) {
	e.GET("/v1/groups", p.ListGroups)
	e.GET("/v1/groups/:id", p.GetGroup)
	e.GET("/v1/groups/:id/events", p.ListEvents)
	e.GET("/v1/groups/:id/events/:event_id", p.GetEvent)
	e.GET("/v1/groups/:id/events/:event_id/tickets", p.TicketsNumber)
	e.GET("/v1/groups/:id/links", p.ListLinks)
	e.GET("/v1/tags", p.ListTags)
	e.GET("/v1/tags/:id", p.GetTag)
	e.GET("/v1/tickets/:id/available", p.TicketAvailable)
	e.GET("/v1/news", p.ListNews)
	e.GET("/v1/news/:id", p.GetNews)
	e.GET("/v1/hebe/:board", p.HebeBoard)
}
