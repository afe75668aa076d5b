package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/authz"
	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// UserHandler serves the /users/me endpoints.
type UserHandler struct {
	Ledger     *ticketing.Ledger
	VoteLedger *ticketing.VoteLedger
	Authz      *authz.Authorizer
	Log        *slog.Logger
}

func NewUserHandler(l *ticketing.Ledger, v *ticketing.VoteLedger, az *authz.Authorizer, log *slog.Logger) *UserHandler {
	if l == nil || v == nil || az == nil {
		panic("nil dependency passed to NewUserHandler")
	}
	return &UserHandler{Ledger: l, VoteLedger: v, Authz: az, Log: orDefault(log)}
}

type meResponse struct {
	ID       string          `json:"id"`
	Name     string          `json:"name,omitempty"`
	Roles    []identity.Role `json:"roles"`
	ParentOf []string        `json:"parent_of"`
}

// Me describes the caller: owner id and resolved roles.
func (h *UserHandler) Me(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	roles := h.Authz.Roles()
	out := meResponse{
		ID:       claims.OwnerID(),
		Name:     claims.Name,
		Roles:    roles.Roles(claims),
		ParentOf: roles.ParentOf(claims),
	}
	if out.Roles == nil {
		out.Roles = []identity.Role{}
	}
	if out.ParentOf == nil {
		out.ParentOf = []string{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *UserHandler) Tickets(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	tickets, err := h.Ledger.ListUserTickets(c.Request().Context(), claims)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": tickets})
}

// OwnerOf lists the ids of the groups the caller owns.
func (h *UserHandler) OwnerOf(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ids, err := h.Authz.OwnedGroups(c.Request().Context(), claims)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": ids})
}

func (h *UserHandler) Votes(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	votes, err := h.VoteLedger.UserVotes(c.Request().Context(), claims)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": votes})
}

// Votable reports whether the caller may vote for :group_id now.
func (h *UserHandler) Votable(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	v, err := h.VoteLedger.IsVotable(c.Request().Context(), claims, c.Param("group_id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"votable": v})
}

func (h *UserHandler) VoteCount(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := h.VoteLedger.UserVoteCount(c.Request().Context(), claims)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"count": n})
}
