package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/importer"
	"github.com/iliyamo/festival-ticketing/internal/model"
	"github.com/iliyamo/festival-ticketing/internal/schedule"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// maxImportBytes bounds an uploaded schedule sheet.
const maxImportBytes = 4 << 20

// AdminHandler manages groups, events, tags, links, owners, news and
// the Hebe boards. The schedule service decides who may do what; the
// router only requires an authenticated caller.
type AdminHandler struct {
	Schedule *schedule.Service
	Importer *importer.Importer
	Cache    ticketing.Invalidator
	Log      *slog.Logger
}

// NewAdminHandler panics on a nil service or importer. cache may be nil.
func NewAdminHandler(s *schedule.Service, im *importer.Importer, cache ticketing.Invalidator, log *slog.Logger) *AdminHandler {
	if s == nil || im == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{Schedule: s, Importer: im, Cache: cache, Log: orDefault(log)}
}

// ---- Groups ----

func (h *AdminHandler) CreateGroup(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	g := model.Group{EnableVote: true}
	if err := c.Bind(&g); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := h.Schedule.CreateGroup(c.Request().Context(), claims, &g); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, g)
}

func (h *AdminHandler) UpdateGroup(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var patch schedule.GroupPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid json")
	}
	g, err := h.Schedule.UpdateGroup(c.Request().Context(), claims, c.Param("id"), patch)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, g)
}

type thumbnailRequest struct {
	URL *string `json:"public_thumbnail_image_url"`
}

func (h *AdminHandler) ChangeThumbnail(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req thumbnailRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	g, err := h.Schedule.ChangeThumbnail(c.Request().Context(), claims, c.Param("id"), req.URL)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *AdminHandler) DeleteGroup(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.DeleteGroup(c.Request().Context(), claims, c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Events ----

func (h *AdminHandler) CreateEvent(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var e model.Event
	if err := c.Bind(&e); err != nil {
		return badRequest(c, "invalid json")
	}
	e.GroupID = c.Param("id")
	if err := h.Schedule.CreateEvent(c.Request().Context(), claims, &e); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *AdminHandler) DeleteEvent(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.DeleteEvent(c.Request().Context(), claims, c.Param("id"), c.Param("event_id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Tags ----

type tagRequest struct {
	Tagname string `json:"tagname"`
}

func (h *AdminHandler) CreateTag(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req tagRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	t, err := h.Schedule.CreateTag(c.Request().Context(), claims, strings.TrimSpace(req.Tagname))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *AdminHandler) RenameTag(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req tagRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	t, err := h.Schedule.RenameTag(c.Request().Context(), claims, c.Param("id"), strings.TrimSpace(req.Tagname))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *AdminHandler) DeleteTag(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.DeleteTag(c.Request().Context(), claims, c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) AddGroupTag(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.AddTagToGroup(c.Request().Context(), claims, c.Param("id"), c.Param("tag_id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) RemoveGroupTag(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.RemoveTagFromGroup(c.Request().Context(), claims, c.Param("id"), c.Param("tag_id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Links ----

func (h *AdminHandler) AddLink(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var l model.GroupLink
	if err := c.Bind(&l); err != nil {
		return badRequest(c, "invalid json")
	}
	l.GroupID = c.Param("id")
	if err := h.Schedule.AddLink(c.Request().Context(), claims, &l); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, l)
}

func (h *AdminHandler) DeleteLink(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.DeleteLink(c.Request().Context(), claims, c.Param("id"), c.Param("link_id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- News ----

func (h *AdminHandler) CreateNews(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var n model.News
	if err := c.Bind(&n); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := h.Schedule.CreateNews(c.Request().Context(), claims, &n); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *AdminHandler) UpdateNews(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var patch schedule.NewsPatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid json")
	}
	n, err := h.Schedule.UpdateNews(c.Request().Context(), claims, c.Param("id"), patch)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *AdminHandler) DeleteNews(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.DeleteNews(c.Request().Context(), claims, c.Param("id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ---- Hebe boards ----

type hebeRequest struct {
	GroupID string `json:"group_id"`
}

// SetHebeBoard puts a hebe group on the nowplaying or upnext board.
func (h *AdminHandler) SetHebeBoard(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req hebeRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	b, err := h.Schedule.SetHebeBoard(c.Request().Context(), claims, c.Param("board"), req.GroupID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// ---- Owners ----

type ownerRequest struct {
	UserID string `json:"user_id"`
	Note   string `json:"note"`
}

func (h *AdminHandler) GrantOwner(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var req ownerRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	o, err := h.Schedule.GrantOwner(c.Request().Context(), claims, c.Param("id"), strings.TrimSpace(req.UserID), req.Note)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, o)
}

func (h *AdminHandler) RevokeOwner(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.Schedule.RevokeOwner(c.Request().Context(), claims, c.Param("id"), c.Param("user_id")); err != nil {
		return fail(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) ListOwners(c echo.Context) error {
	claims, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	owners, err := h.Schedule.ListOwners(c.Request().Context(), claims, c.Param("id"))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": owners})
}

// ---- Import ----

type rowProblem struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportEvents loads a schedule sheet, either as the "file" field of a
// multipart form or as a text/csv body. The route is admin only. Either
// every row is inserted or none is; a rejected sheet lists every
// offending row.
func (h *AdminHandler) ImportEvents(c echo.Context) error {
	var src io.Reader
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return badRequest(c, "file is required")
		}
		if fh.Size > maxImportBytes {
			return badRequest(c, "file too large")
		}
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "cannot read file")
		}
		defer f.Close()
		src = f
	} else {
		src = io.LimitReader(c.Request().Body, maxImportBytes)
	}

	ctx := c.Request().Context()
	events, err := h.Importer.Import(ctx, src)
	if err != nil {
		var problems []rowProblem
		for _, e := range flatten(err) {
			var re *importer.RowError
			if !errors.As(e, &re) {
				continue
			}
			problems = append(problems, rowProblem{Row: re.Row, Error: re.Err.Error()})
		}
		if len(problems) == 0 {
			return fail(c, h.Log, err)
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid schedule", "rows": problems})
	}

	if h.Cache != nil {
		seen := map[string]bool{}
		for _, e := range events {
			if !seen[e.GroupID] {
				seen[e.GroupID] = true
				h.Cache.Invalidate(ctx, ticketing.KindGroup, e.GroupID)
			}
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"items": events, "count": len(events)})
}

// flatten unpacks an errors.Join tree into its leaves.
func flatten(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		var out []error
		for _, e := range j.Unwrap() {
			out = append(out, flatten(e)...)
		}
		return out
	}
	return []error{err}
}
