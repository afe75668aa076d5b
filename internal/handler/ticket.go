package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/schedule"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// TicketHandler issues, cancels and punches tickets.
type TicketHandler struct {
	Ledger   *ticketing.Ledger
	Schedule *schedule.Service
	Log      *slog.Logger
}

func NewTicketHandler(l *ticketing.Ledger, s *schedule.Service, log *slog.Logger) *TicketHandler {
	if l == nil || s == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{Ledger: l, Schedule: s, Log: orDefault(log)}
}

// eventOf resolves :event_id and checks that it belongs to group :id.
func (h *TicketHandler) eventOf(c echo.Context) (*model.Event, error) {
	return h.Schedule.GetEvent(c.Request().Context(), c.Param("id"), c.Param("event_id"))
}

type issueFunc func(c echo.Context, ev *model.Event) (*model.Ticket, error)

// issue wraps the common steps of the issuance endpoints.
func (h *TicketHandler) issue(c echo.Context, fn issueFunc) error {
	ev, err := h.eventOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	t, err := fn(c, ev)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Create handles POST /groups/:id/events/:event_id/tickets?person=n.
func (h *TicketHandler) Create(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	person, ok := personParam(c)
	if !ok {
		return badRequest(c, "person must be an integer")
	}
	return h.issue(c, func(c echo.Context, ev *model.Event) (*model.Ticket, error) {
		return h.Ledger.CreateTicket(c.Request().Context(), claims, ev.ID, person)
	})
}

// CreateAdmin issues a ticket outside the sell window. Admins only.
func (h *TicketHandler) CreateAdmin(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	person, ok := personParam(c)
	if !ok {
		return badRequest(c, "person must be an integer")
	}
	return h.issue(c, func(c echo.Context, ev *model.Event) (*model.Ticket, error) {
		return h.Ledger.AdminCreateTicket(c.Request().Context(), claims, ev.ID, person)
	})
}

// CreateFamily issues a single-person ticket from the family pool.
func (h *TicketHandler) CreateFamily(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	return h.issue(c, func(c echo.Context, ev *model.Event) (*model.Ticket, error) {
		return h.Ledger.CreateFamilyTicket(c.Request().Context(), claims, ev.ID)
	})
}

// CreatePaper records one paper ticket sold at the door.
func (h *TicketHandler) CreatePaper(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	return h.issue(c, func(c echo.Context, ev *model.Event) (*model.Ticket, error) {
		return h.Ledger.CreatePaperTicket(c.Request().Context(), claims, ev.ID)
	})
}

// RetractPaper cancels one paper ticket of the event.
func (h *TicketHandler) RetractPaper(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ev, err := h.eventOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	t, err := h.Ledger.RetractPaperTicket(c.Request().Context(), claims, ev.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// ActiveIDs lists the active ticket ids of an event for its managers.
func (h *TicketHandler) ActiveIDs(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ev, err := h.eventOf(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ids, err := h.Ledger.ListActiveTicketIDs(c.Request().Context(), claims, ev.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": ids})
}

// Cancel handles DELETE /tickets/:id for the ticket's holder.
func (h *TicketHandler) Cancel(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	t, err := h.Ledger.CancelTicket(c.Request().Context(), claims, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Use punches a ticket at the entrance.
func (h *TicketHandler) Use(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	t, err := h.Ledger.UseTicket(c.Request().Context(), claims, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}
