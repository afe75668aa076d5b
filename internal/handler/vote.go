package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// VoteHandler records votes and reports tallies.
type VoteHandler struct {
	Votes *ticketing.VoteLedger
	Log   *slog.Logger
}

func NewVoteHandler(v *ticketing.VoteLedger, log *slog.Logger) *VoteHandler {
	if v == nil {
		panic("nil vote ledger passed to NewVoteHandler")
	}
	return &VoteHandler{Votes: v, Log: orDefault(log)}
}

// Create handles POST /votes?group_id=.
func (h *VoteHandler) Create(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	groupID := c.QueryParam("group_id")
	if groupID == "" {
		return badRequest(c, "group_id is required")
	}
	v, err := h.Votes.CreateVote(c.Request().Context(), claims, groupID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// GroupCount returns the number of votes a group received.
func (h *VoteHandler) GroupCount(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	n, err := h.Votes.GroupVoteCount(c.Request().Context(), claims, c.Param("group_id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"group_id": c.Param("group_id"), "count": n})
}
