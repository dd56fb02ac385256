package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

// ChildHandler serves /v1/children.
type ChildHandler struct {
	Children   *repository.ChildRepo
	Parents    *repository.ParentRepo
	Classes    *repository.ClassRepo
	Attendance *repository.AttendanceRepo
	Flags      *repository.FlagRepo
}

type childReq struct {
	FirstName string  `json:"first_name" validate:"required,max=100"`
	LastName  string  `json:"last_name" validate:"required,max=100"`
	BirthDate *string `json:"birth_date" validate:"omitempty,date"`
	ParentID  *uint64 `json:"parent_id" validate:"omitempty,gt=0"`
	ClassID   *uint64 `json:"class_id" validate:"omitempty,gt=0"`
	Allergies string  `json:"allergies" validate:"max=500"`
	Notes     string  `json:"notes" validate:"max=1000"`
}

func (r childReq) apply(c *model.Child) {
	c.FirstName = strings.TrimSpace(r.FirstName)
	c.LastName = strings.TrimSpace(r.LastName)
	c.BirthDate, c.ParentID, c.ClassID = r.BirthDate, r.ParentID, r.ClassID
	c.Allergies, c.Notes = strings.TrimSpace(r.Allergies), strings.TrimSpace(r.Notes)
}

// checkRefs makes sure the referenced parent and class exist so a bad id
// is a 404 instead of a foreign key error.
func (h *ChildHandler) checkRefs(c echo.Context, req childReq) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if req.ParentID != nil {
		if _, err := h.Parents.GetByID(ctx, *req.ParentID); err != nil {
			return err
		}
	}
	if req.ClassID != nil {
		if _, err := h.Classes.GetByID(ctx, *req.ClassID); err != nil {
			return err
		}
	}
	return nil
}

// List handles GET /v1/children?search=&class_id=&parent_id=&include_archived=.
func (h *ChildHandler) List(c echo.Context) error {
	f := repository.ChildFilter{Search: c.QueryParam("search")}
	f.IncludeArchived, _ = strconv.ParseBool(c.QueryParam("include_archived"))
	for name, dst := range map[string]**uint64{"class_id": &f.ClassID, "parent_id": &f.ParentID} {
		if v := c.QueryParam(name); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
			}
			*dst = &id
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Children.List(ctx, f)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Create handles POST /v1/children.
func (h *ChildHandler) Create(c echo.Context) error {
	var req childReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if err := h.checkRefs(c, req); err != nil {
		return dbError(c, err)
	}
	var child model.Child
	req.apply(&child)
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Children.Create(ctx, &child); err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusCreated, child)
}

// Get handles GET /v1/children/:id and includes the latest irregularity
// flag when there is one.
func (h *ChildHandler) Get(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	child, err := h.Children.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	resp := echo.Map{"child": child}
	if flag, err := h.Flags.GetByChild(ctx, id); err == nil {
		resp["flag"] = flag
	}
	return c.JSON(http.StatusOK, resp)
}

// Update handles PUT /v1/children/:id.
func (h *ChildHandler) Update(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req childReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if err := h.checkRefs(c, req); err != nil {
		return dbError(c, err)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	child, err := h.Children.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	req.apply(child)
	if err := h.Children.Update(ctx, child); err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, child)
}

// Delete handles DELETE /v1/children/:id.
func (h *ChildHandler) Delete(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Children.Delete(ctx, id); err != nil {
		return dbError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Archive handles POST /v1/children/:id/archive.
func (h *ChildHandler) Archive(c echo.Context) error { return h.setArchived(c, true) }

// Unarchive handles POST /v1/children/:id/unarchive.
func (h *ChildHandler) Unarchive(c echo.Context) error { return h.setArchived(c, false) }

func (h *ChildHandler) setArchived(c echo.Context, archived bool) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Children.SetArchived(ctx, id, archived); err != nil {
		return dbError(c, err)
	}
	child, err := h.Children.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, child)
}

// Irregular handles GET /v1/children/irregular.
func (h *ChildHandler) Irregular(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Children.ListIrregular(ctx)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// AttendanceHistory handles GET /v1/children/:id/attendance?limit=.
func (h *ChildHandler) AttendanceHistory(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	ctx, cancel := reqCtx(c)
	defer cancel()
	if _, err := h.Children.GetByID(ctx, id); err != nil {
		return dbError(c, err)
	}
	items, err := h.Attendance.ListByChild(ctx, id, limit)
	if err != nil {
		return dbError(c, err)
	}
	redact(items...)
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
