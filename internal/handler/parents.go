package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

// ParentHandler serves /v1/parents.
type ParentHandler struct {
	Parents  *repository.ParentRepo
	Children *repository.ChildRepo
}

type parentReq struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Phone     string `json:"phone" validate:"max=32"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
}

func (r parentReq) apply(p *model.Parent) {
	p.FirstName, p.LastName = strings.TrimSpace(r.FirstName), strings.TrimSpace(r.LastName)
	p.Phone, p.Email = strings.TrimSpace(r.Phone), strings.ToLower(strings.TrimSpace(r.Email))
}

func (h *ParentHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Parents.List(ctx)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *ParentHandler) Create(c echo.Context) error {
	var req parentReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	var p model.Parent
	req.apply(&p)
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Parents.Create(ctx, &p); err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *ParentHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Parents.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *ParentHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req parentReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Parents.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	req.apply(p)
	if err := h.Parents.Update(ctx, p); err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Delete unlinks the parent's children rather than deleting them.
func (h *ParentHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Parents.Delete(ctx, id); err != nil {
		return dbError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ChildrenOf handles GET /v1/parents/:id/children.
func (h *ParentHandler) ChildrenOf(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Parents.GetByID(ctx, id); err != nil {
		return dbError(c, err)
	}
	items, err := h.Children.List(ctx, repository.ChildFilter{ParentID: &id, IncludeArchived: true})
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
