package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

// ClassHandler serves /v1/classes.
type ClassHandler struct {
	Classes *repository.ClassRepo
}

type classReq struct {
	Name   string `json:"name" validate:"required,max=100"`
	MinAge *int   `json:"min_age" validate:"omitempty,gte=0,lte=18"`
	MaxAge *int   `json:"max_age" validate:"omitempty,gte=0,lte=18"`
}

func (r classReq) check() string {
	if r.MinAge != nil && r.MaxAge != nil && *r.MinAge > *r.MaxAge {
		return "min_age must not exceed max_age"
	}
	return ""
}

func (h *ClassHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Classes.List(ctx)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ClassHandler) Create(c echo.Context) error {
	var req classReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if msg := req.check(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	cls := model.Class{Name: strings.TrimSpace(req.Name), MinAge: req.MinAge, MaxAge: req.MaxAge}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Classes.Create(ctx, &cls); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "class name already exists"})
		}
		return dbError(c, err)
	}
	return c.JSON(http.StatusCreated, cls)
}

func (h *ClassHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req classReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if msg := req.check(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	cls, err := h.Classes.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	cls.Name, cls.MinAge, cls.MaxAge = strings.TrimSpace(req.Name), req.MinAge, req.MaxAge
	if err := h.Classes.Update(ctx, cls); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "class name already exists"})
		}
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, cls)
}

// Delete refuses with 409 while active children are assigned to the class.
func (h *ClassHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Classes.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "class still has children assigned"})
		}
		return dbError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
