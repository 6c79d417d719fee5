// Package handler contains the HTTP endpoints. Handlers bind requests,
// translate repository and engine sentinel errors to status codes, and
// delegate all transactional work to the checkout engine or the
// repositories; no business rule lives in this package.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/jmhautala/sportsreg/internal/repository"
)

// getUserID extracts the authenticated user id placed in the context by
// the JWT middleware. JWT number claims decode as float64, so several
// representations are accepted.
func getUserID(c echo.Context) (uint64, error) {
	switch t := c.Get("user_id").(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// fail maps known sentinel errors to HTTP responses and everything else
// to a 500. Handlers call it as their single error exit.
func fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrCheckoutNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrEventNotFound),
		errors.Is(err, repository.ErrRoomNotFound),
		errors.Is(err, repository.ErrReservationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, repository.ErrInsufficientFunds):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "insufficient wallet funds"})
	case errors.Is(err, repository.ErrRoomUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "room unavailable"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
