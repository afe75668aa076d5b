package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/handler"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/middleware"
)

// RegisterUser registers the endpoints of signed-in visitors: their
// profile, tickets and votes. Role checks happen in the ledgers since
// they depend on the event's target and the caller's ownerships. limit
// guards the issuing and voting routes; it runs after authentication so
// buckets can be keyed by user.
func RegisterUser(e *echo.Echo, v identity.Verifier, limit echo.MiddlewareFunc, u *handler.UserHandler, t *handler.TicketHandler, vh *handler.VoteHandler) {
	g := e.Group("/v1", middleware.Authenticate(v))

	// ---- Me ----
	g.GET("/users/me", u.Me)
	g.GET("/users/me/tickets", u.Tickets)
	g.GET("/users/me/owner_of", u.OwnerOf)
	g.GET("/users/me/votes", u.Votes)
	g.GET("/users/me/votes/:group_id", u.Votable)
	g.GET("/users/me/count/votes", u.VoteCount)

	// ---- Tickets ----
	g.POST("/groups/:id/events/:event_id/tickets", t.Create, limit)
	g.POST("/groups/:id/events/:event_id/tickets/admin", t.CreateAdmin)
	g.POST("/groups/:id/events/:event_id/tickets/family", t.CreateFamily, limit)
	g.POST("/groups/:id/events/:event_id/tickets/paper", t.CreatePaper)
	g.DELETE("/groups/:id/events/:event_id/tickets/paper", t.RetractPaper)
	g.GET("/groups/:id/events/:event_id/tickets/active", t.ActiveIDs)
	g.DELETE("/tickets/:id", t.Cancel)
	g.PUT("/tickets/:id/use", t.Use)

	// ---- Votes ----
	g.POST("/votes", vh.Create, limit)
	g.GET("/votes/:group_id", vh.GroupCount)
}
