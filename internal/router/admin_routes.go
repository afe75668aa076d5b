package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/handler"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/middleware"
)

// RegisterAdmin registers the schedule management endpoints. Group
// owners may edit their own group, so most routes only require a
// signed-in caller and the schedule service checks the rest. The bulk
// import has no per-group check and is gated on the admin role here.
func RegisterAdmin(e *echo.Echo, v identity.Verifier, roles *identity.Resolver, a *handler.AdminHandler) {
	g := e.Group("/v1", middleware.Authenticate(v))

	// ---- Groups ----
	g.POST("/groups", a.CreateGroup)
	g.PUT("/groups/:id", a.UpdateGroup)
	g.PATCH("/groups/:id", a.UpdateGroup)
	g.PUT("/groups/:id/thumbnail", a.ChangeThumbnail)
	g.DELETE("/groups/:id", a.DeleteGroup)

	// ---- Events ----
	g.POST("/groups/:id/events", a.CreateEvent)
	g.DELETE("/groups/:id/events/:event_id", a.DeleteEvent)
	g.POST("/events/import", a.ImportEvents, middleware.RequireRole(roles, identity.RoleAdmin))

	// ---- Tags ----
	g.POST("/tags", a.CreateTag)
	g.PUT("/tags/:id", a.RenameTag)
	g.DELETE("/tags/:id", a.DeleteTag)
	g.PUT("/groups/:id/tags/:tag_id", a.AddGroupTag)
	g.DELETE("/groups/:id/tags/:tag_id", a.RemoveGroupTag)

	// ---- Links ----
	g.POST("/groups/:id/links", a.AddLink)
	g.DELETE("/groups/:id/links/:link_id", a.DeleteLink)

	// ---- News ----
	g.POST("/news", a.CreateNews)
	g.PUT("/news/:id", a.UpdateNews)
	g.DELETE("/news/:id", a.DeleteNews)

	// ---- Hebe boards ----
	g.PUT("/hebe/:board", a.SetHebeBoard)

	// ---- Owners ----
	g.GET("/groups/:id/owners", a.ListOwners)
	g.POST("/groups/:id/owners", a.GrantOwner)
	g.DELETE("/groups/:id/owners/:user_id", a.RevokeOwner)
}
