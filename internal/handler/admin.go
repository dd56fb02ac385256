package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/middleware"
	"github.com/iliyamo/kids-checkin/internal/service"
)

// AdminHandler exposes maintenance operations to admins.
type AdminHandler struct {
	Flags *service.IrregularityService
}

// RecomputeFlags handles POST /v1/admin/flags/recompute and runs the
// irregularity job synchronously.
func (h *AdminHandler) RecomputeFlags(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Minute)
	defer cancel()
	sum, err := h.Flags.Run(ctx)
	if errors.Is(err, service.ErrJobRunning) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "flag job already running"})
	}
	if err != nil {
		middleware.Logger(c).Error("manual flag recompute failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "recompute failed"})
	}
	return c.JSON(http.StatusOK, sum)
}
