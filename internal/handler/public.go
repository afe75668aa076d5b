// Package handler exposes the festival API over HTTP. Handlers parse the
// request, call the ledgers or the schedule service and map their errors
// to status codes; they hold no business rules of their own.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/cache"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/schedule"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// PublicHandler serves the unauthenticated browse endpoints. Group,
// event and stock reads go through the entity cache; the numbers shown
// here are informational and never used for issuance.
type PublicHandler struct {
	Schedule *schedule.Service
	Ledger   *ticketing.Ledger
	Cache    *cache.Store
	Log      *slog.Logger
}

// NewPublicHandler panics if the schedule service or ledger is nil. A
// nil cache store reads straight from the database.
func NewPublicHandler(s *schedule.Service, l *ticketing.Ledger, store *cache.Store, log *slog.Logger) *PublicHandler {
	if s == nil || l == nil {
		panic("nil dependency passed to NewPublicHandler")
	}
	return &PublicHandler{Schedule: s, Ledger: l, Cache: store, Log: orDefault(log)}
}

// publicGroup hides the page reserved for ticket holders.
func publicGroup(g *model.Group) model.Group {
	out := *g
	out.PrivatePageURL = nil
	return out
}

func (h *PublicHandler) group(ctx context.Context, id string) (*model.Group, error) {
	return cache.Fetch(ctx, h.Cache, ticketing.KindGroup, id, func(ctx context.Context) (*model.Group, error) {
		return h.Schedule.GetGroup(ctx, id)
	})
}

func (h *PublicHandler) event(ctx context.Context, groupID, id string) (*model.Event, error) {
	return cache.Fetch(ctx, h.Cache, ticketing.KindEvent, id, func(ctx context.Context) (*model.Event, error) {
		return h.Schedule.GetEvent(ctx, groupID, id)
	})
}

// ListGroups returns every group as {"items": [...]}.
func (h *PublicHandler) ListGroups(c echo.Context) error {
	groups, err := h.Schedule.ListGroups(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	out := make([]model.Group, 0, len(groups))
	for _, g := range groups {
		out = append(out, publicGroup(g))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

func (h *PublicHandler) GetGroup(c echo.Context) error {
	g, err := h.group(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, publicGroup(g))
}

func (h *PublicHandler) ListEvents(c echo.Context) error {
	events, err := h.Schedule.ListEvents(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

func (h *PublicHandler) GetEvent(c echo.Context) error {
	e, err := h.event(c.Request().Context(), c.Param("id"), c.Param("event_id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	// cached entries are keyed by event id only
	if e.GroupID != c.Param("id") {
		return fail(c, h.Log, ticketing.ErrNotFound)
	}
	return c.JSON(http.StatusOK, e)
}

// TicketsNumber reports taken, left and stock of an event.
func (h *PublicHandler) TicketsNumber(c echo.Context) error {
	ctx := c.Request().Context()
	e, err := h.event(ctx, c.Param("id"), c.Param("event_id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	if e.GroupID != c.Param("id") {
		return fail(c, h.Log, ticketing.ErrNotFound)
	}
	n, err := cache.Fetch(ctx, h.Cache, ticketing.KindTickets, e.ID, func(ctx context.Context) (model.TicketsNumber, error) {
		return h.Ledger.TicketsNumber(ctx, e.ID)
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *PublicHandler) ListLinks(c echo.Context) error {
	links, err := h.Schedule.ListLinks(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": links})
}

func (h *PublicHandler) ListTags(c echo.Context) error {
	tags, err := h.Schedule.ListTags(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tags})
}

func (h *PublicHandler) GetTag(c echo.Context) error {
	t, err := h.Schedule.GetTag(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// TicketAvailable answers whether a ticket exists and is still active.
// Entry staff scan it at the door.
func (h *PublicHandler) TicketAvailable(c echo.Context) error {
	ok, err := h.Ledger.IsAvailable(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"available": ok})
}

// ListNews returns the announcements, newest first.
func (h *PublicHandler) ListNews(c echo.Context) error {
	news, err := h.Schedule.ListNews(c.Request().Context())
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": news})
}

func (h *PublicHandler) GetNews(c echo.Context) error {
	id := c.Param("id")
	n, err := cache.Fetch(c.Request().Context(), h.Cache, ticketing.KindNews, id, func(ctx context.Context) (*model.News, error) {
		return h.Schedule.GetNews(ctx, id)
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, n)
}

// HebeBoard reports the group on the nowplaying or upnext board.
func (h *PublicHandler) HebeBoard(c echo.Context) error {
	board := c.Param("board")
	b, err := cache.Fetch(c.Request().Context(), h.Cache, ticketing.KindHebe, board, func(ctx context.Context) (*model.HebeBoard, error) {
		return h.Schedule.HebeBoard(ctx, board)
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}
