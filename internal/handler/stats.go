package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-checkin/internal/repository"
	"github.com/iliyamo/kids-checkin/internal/utils"
)

// maxRangeDays caps statistics and export ranges.
const maxRangeDays = 366

// StatsHandler serves /v1/stats.  Responses are cached in Redis by the
// router.
type StatsHandler struct {
	Stats *repository.StatsRepo
	Today func() string
}

func (h *StatsHandler) Summary(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	s, err := h.Stats.Summary(ctx, h.Today())
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Attendance handles GET /v1/stats/attendance?from=&to=.  The default range
// is the twelve weeks up to today.
func (h *StatsHandler) Attendance(c echo.Context) error {
	from, to, msg := dateRange(c, h.Today(), 12*7)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	byDate, err := h.Stats.AttendanceByDate(ctx, from, to)
	if err != nil {
		return dbError(c, err)
	}
	byClass, err := h.Stats.AttendanceByClass(ctx, from, to)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"from":     from,
		"to":       to,
		"by_date":  byDate,
		"by_class": byClass,
	})
}

// dateRange reads from/to query parameters.  Missing values default to
// today and defaultDays before it.  A non-empty message means the range is
// invalid.
func dateRange(c echo.Context, today string, defaultDays int) (string, string, string) {
	t, _ := utils.ParseDate(today)
	to, ok := dateParam(c, "to", today)
	if !ok {
		return "", "", "to must be YYYY-MM-DD"
	}
	from, ok := dateParam(c, "from", t.AddDate(0, 0, -defaultDays).Format(utils.DateLayout))
	if !ok {
		return "", "", "from must be YYYY-MM-DD"
	}
	f, _ := utils.ParseDate(from)
	e, _ := utils.ParseDate(to)
	if f.After(e) {
		return "", "", "from must not be after to"
	}
	if e.Sub(f) > maxRangeDays*24*time.Hour {
		return "", "", "range must not exceed 366 days"
	}
	return from, to, ""
}
