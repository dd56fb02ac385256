package handler

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/iliyamo/kids-checkin/internal/middleware"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

// ExportHandler streams attendance between two dates as CSV or XLSX.
type ExportHandler struct {
	Attendance *repository.AttendanceRepo
	Today      func() string
	Location   *time.Location
}

// exportTimeout bounds one export. A year of rows written to a slow
// client needs far longer than the usual request timeout.
const exportTimeout = 5 * time.Minute

func exportCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), exportTimeout)
}

// cellText stops staff-entered text from being read as a formula when the
// export is opened in a spreadsheet.
func cellText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}

var exportHeader = []string{
	"record_id", "service_date", "tag_number", "child_id", "first_name", "last_name",
	"class_name", "checked_in_at", "checked_out_at",
}

func (h *ExportHandler) row(r repository.ExportRow) []string {
	childID, out := "", ""
	if r.ChildID != nil {
		childID = strconv.FormatUint(*r.ChildID, 10)
	}
	if r.CheckedOutAt != nil {
		out = r.CheckedOutAt.In(h.Location).Format(time.RFC3339)
	}
	return []string{
		strconv.FormatUint(r.ID, 10),
		r.ServiceDate,
		strconv.Itoa(r.TagNumber),
		childID,
		cellText(r.FirstName),
		cellText(r.LastName),
		cellText(r.ClassName),
		r.CheckedInAt.In(h.Location).Format(time.RFC3339),
		out,
	}
}

func attachment(c echo.Context, contentType, name string) {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, contentType)
	h.Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
	h.Set("Cache-Control", "no-store")
}

// CSV handles GET /v1/export/attendance.csv?from=&to=.  Rows are written as
// they are read so large ranges never sit in memory.
func (h *ExportHandler) CSV(c echo.Context) error {
	from, to, msg := dateRange(c, h.Today(), 30)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := exportCtx(c)
	defer cancel()

	attachment(c, "text/csv; charset=utf-8", fmt.Sprintf("attendance_%s_%s.csv", from, to))
	c.Response().WriteHeader(http.StatusOK)
	w := csv.NewWriter(c.Response())
	if err := w.Write(exportHeader); err != nil {
		return nil
	}
	n := 0
	err := h.Attendance.ForEachInRange(ctx, from, to, func(r repository.ExportRow) error {
		n++
		if n%500 == 0 {
			w.Flush()
			c.Response().Flush()
		}
		return w.Write(h.row(r))
	})
	w.Flush()
	if err == nil {
		err = w.Error()
	}
	if err != nil {
		// the status is already sent; abort the connection so the client
		// sees a failed download instead of a short file
		middleware.Logger(c).Error("csv export aborted", zap.Int("rows", n), zap.Error(err))
		panic(http.ErrAbortHandler)
	}
	return nil
}

// XLSX handles GET /v1/export/attendance.xlsx?from=&to=.
func (h *ExportHandler) XLSX(c echo.Context) error {
	from, to, msg := dateRange(c, h.Today(), 30)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	ctx, cancel := exportCtx(c)
	defer cancel()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	const sheet = "Attendance"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "export failed"})
	}
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "export failed"})
	}
	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = sw.SetColWidth(5, 7, 18)
	_ = sw.SetColWidth(8, 9, 24)

	header := make([]any, len(exportHeader))
	for i, v := range exportHeader {
		header[i] = v
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: bold}); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "export failed"})
	}

	rowNum := 1
	err = h.Attendance.ForEachInRange(ctx, from, to, func(r repository.ExportRow) error {
		rowNum++
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		vals := h.row(r)
		out := make([]any, len(vals))
		for i, v := range vals {
			out[i] = v
		}
		out[0], out[2] = r.ID, r.TagNumber // keep numeric cells numeric
		return sw.SetRow(cell, out)
	})
	if err == nil {
		err = sw.Flush()
	}
	if err != nil {
		return dbError(c, err)
	}

	attachment(c, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		fmt.Sprintf("attendance_%s_%s.xlsx", from, to))
	c.Response().WriteHeader(http.StatusOK)
	if _, err := f.WriteTo(c.Response()); err != nil {
		middleware.Logger(c).Error("xlsx export write failed", zap.Error(err))
	}
	return nil
}
