package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-checkin/internal/repository"
)

// SettingsHandler serves /v1/settings.
type SettingsHandler struct {
	Settings *repository.SettingsRepo
}

type settingsReq struct {
	Values map[string]string `json:"values" validate:"required,min=1,max=50,dive,keys,settingkey,endkeys,max=1000"`
}

func (h *SettingsHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Settings.List(ctx)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Update handles PUT /v1/settings.  All values are written in one
// transaction; keys not mentioned are left alone.
func (h *SettingsHandler) Update(c echo.Context) error {
	var req settingsReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Settings.SetMany(ctx, req.Values); err != nil {
		return dbError(c, err)
	}
	items, err := h.Settings.List(ctx)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
