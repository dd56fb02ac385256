package handler // package handler defines the HTTP handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/middleware"
	"github.com/iliyamo/kids-checkin/internal/repository"
	"github.com/iliyamo/kids-checkin/internal/utils"
)

const requestTimeout = 5 * time.Second

// reqCtx bounds database work done on behalf of one request.
func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// getUserID returns the authenticated staff member's id.
func getUserID(c echo.Context) (uint64, error) {
	if id, ok := middleware.UserID(c); ok {
		return id, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// actor is getUserID as an optional audit value.
func actor(c echo.Context) *uint64 {
	if id, err := getUserID(c); err == nil {
		return &id
	}
	return nil
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// bindValid binds the body into dst and runs the validator.  On failure it
// has already written the 400 response; callers return the error it gives.
func bindValid(c echo.Context, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := c.Validate(dst); err != nil {
		msg := "invalid request"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if s, ok := he.Message.(string); ok {
				msg = s
			}
		}
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	return true, nil
}

// dateParam reads a YYYY-MM-DD query parameter, falling back to def.
func dateParam(c echo.Context, name, def string) (string, bool) {
	v := c.QueryParam(name)
	if v == "" {
		return def, true
	}
	if _, err := utils.ParseDate(v); err != nil {
		return "", false
	}
	return v, true
}

// dbError maps repository sentinels to a status; anything else is a 500.
func dbError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrChildNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "child not found"})
	case errors.Is(err, repository.ErrParentNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "parent not found"})
	case errors.Is(err, repository.ErrClassNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "class not found"})
	case errors.Is(err, repository.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	case errors.Is(err, repository.ErrAttendanceNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "attendance record not found"})
	case errors.Is(err, repository.ErrTagUsageNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tag not in use"})
	case errors.Is(err, repository.ErrSettingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "setting not found"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "database timeout"})
	}
	middleware.Logger(c).Error("db error", zap.String("route", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "db error"})
}
