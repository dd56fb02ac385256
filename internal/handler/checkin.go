package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/middleware"
	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
	"github.com/iliyamo/kids-checkin/internal/service"
)

// CheckinHandler serves check-in, checkout, attendance and tag lookups.
type CheckinHandler struct {
	Svc        *service.CheckinService
	Attendance *repository.AttendanceRepo
	Tags       *repository.TagRepo
}

type checkinReq struct {
	TagNumber int     `json:"tag_number" validate:"required,min=1,max=9999"`
	ClassName string  `json:"class_name" validate:"required,max=100"`
	ChildID   *uint64 `json:"child_id" validate:"omitempty,gt=0"`
	Override  bool    `json:"override"`
}

type checkoutReq struct {
	RecordID     uint64 `json:"record_id" validate:"required,gt=0"`
	SecurityCode string `json:"security_code" validate:"required,max=12"`
}

// CheckIn handles POST /v1/checkin.
func (h *CheckinHandler) CheckIn(c echo.Context) error {
	var req checkinReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	className := strings.TrimSpace(req.ClassName)
	if className == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "class_name is required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	res, err := h.Svc.SignIn(ctx, service.SignInInput{
		TagNumber: req.TagNumber,
		ClassName: className,
		ChildID:   req.ChildID,
		Override:  req.Override,
		By:        actor(c),
	})
	if err != nil {
		var inUse *service.TagInUseError
		switch {
		case errors.As(err, &inUse):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":             "tag already in use",
				"existing_usage_id": inUse.ExistingUsageID,
			})
		case errors.Is(err, service.ErrChildArchived):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "child is archived"})
		}
		return dbError(c, err)
	}

	resp := echo.Map{
		"record":       res.Attendance,
		"tag_usage_id": res.TagUsage.ID,
	}
	if res.Override != nil {
		resp["override"] = res.Override
	}
	return c.JSON(http.StatusCreated, resp)
}

// Checkout handles POST /v1/checkout.
func (h *CheckinHandler) Checkout(c echo.Context) error {
	var req checkoutReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rec, err := h.Svc.Checkout(ctx, service.CheckoutInput{
		RecordID:     req.RecordID,
		SecurityCode: req.SecurityCode,
		By:           actor(c),
	})
	switch {
	case err == nil:
		redact(rec)
		return c.JSON(http.StatusOK, echo.Map{"record": rec})
	case errors.Is(err, service.ErrInvalidCode):
		middleware.Logger(c).Warn("checkout with wrong security code", zap.Uint64("record_id", req.RecordID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "invalid security code"})
	case errors.Is(err, service.ErrAlreadyCheckedOut):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "already checked out"})
	}
	return dbError(c, err)
}

// ListAttendance handles GET /v1/attendance?date=, defaulting to today.
func (h *CheckinHandler) ListAttendance(c echo.Context) error {
	date, ok := dateParam(c, "date", h.Svc.Today())
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Attendance.ListByDate(ctx, date)
	if err != nil {
		return dbError(c, err)
	}
	redact(items...)
	return c.JSON(http.StatusOK, echo.Map{"date": date, "items": items})
}

// GetAttendance handles GET /v1/attendance/:id.
func (h *CheckinHandler) GetAttendance(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rec, err := h.Attendance.GetByID(ctx, id)
	if err != nil {
		return dbError(c, err)
	}
	redact(rec)
	return c.JSON(http.StatusOK, rec)
}

// GetTag handles GET /v1/tags/:tag?date= and returns the usage holding the
// tag together with its attendance record.
func (h *CheckinHandler) GetTag(c echo.Context) error {
	tag, err := strconv.Atoi(c.Param("tag"))
	if err != nil || tag < 1 || tag > 9999 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tag must be between 1 and 9999"})
	}
	date, ok := dateParam(c, "date", h.Svc.Today())
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	usage, err := h.Tags.GetByDateAndTag(ctx, date, tag)
	if err != nil {
		return dbError(c, err)
	}
	rec, err := h.Attendance.GetByID(ctx, usage.AttendanceID)
	if err != nil {
		return dbError(c, err)
	}
	redact(rec)
	return c.JSON(http.StatusOK, echo.Map{"usage": usage, "record": rec})
}

// ListOverrides handles GET /v1/tags/overrides?date=.
func (h *CheckinHandler) ListOverrides(c echo.Context) error {
	date, ok := dateParam(c, "date", h.Svc.Today())
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	items, err := h.Tags.ListOverrideLogs(ctx, date)
	if err != nil {
		return dbError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": date, "items": items})
}

// redact drops security codes; only the check-in response shows them.
func redact(recs ...*model.Attendance) {
	for _, r := range recs {
		r.SecurityCode = ""
	}
}
