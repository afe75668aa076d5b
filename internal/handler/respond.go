package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/festival-ticketing/internal/identity"
	"github.com/iliyamo/festival-ticketing/internal/middleware"
	"github.com/iliyamo/festival-ticketing/internal/ticketing"
)

// errorStatus maps ledger and schedule errors to HTTP status codes.
// An already used or cancelled ticket answers 404 like a missing one.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ticketing.ErrNotFound), errors.Is(err, ticketing.ErrAlreadyUsed):
		return http.StatusNotFound
	case errors.Is(err, ticketing.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ticketing.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ticketing.ErrSoldOut),
		errors.Is(err, ticketing.ErrOutOfWindow),
		errors.Is(err, ticketing.ErrNotQualified),
		errors.Is(err, ticketing.ErrConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as {"error": ...}. Unexpected errors are logged and
// reported without detail.
func fail(c echo.Context, log *slog.Logger, err error) error {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.ErrorContext(c.Request().Context(), "request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.Any("err", err))
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": err.Error()}
	var ve *ticketing.ValidationError
	if errors.As(err, &ve) {
		body["field"] = ve.Field
	}
	return c.JSON(status, body)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// caller returns the verified claims. Routes using it sit behind
// middleware.Authenticate; a miss is answered with unauthorized.
func caller(c echo.Context) (identity.Claims, bool) {
	return middleware.Claims(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// personParam reads ?person=, defaulting to 1.
func personParam(c echo.Context) (int, bool) {
	raw := c.QueryParam("person")
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
