package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/kids-checkin/internal/model"
	"github.com/iliyamo/kids-checkin/internal/repository"
)

func TestCellText(t *testing.T) {
	cases := map[string]string{
		"":                        "",
		"Sam":                     "Sam",
		"O'Neil":                  "O'Neil",
		"=HYPERLINK(\"x\",\"y\")": "'=HYPERLINK(\"x\",\"y\")",
		"+1":                      "'+1",
		"-2+3":                    "'-2+3",
		"@SUM(A1)":                "'@SUM(A1)",
		"\tTab":                   "'\tTab",
		"Mary-Jane":               "Mary-Jane",
	}
	for in, want := range cases {
		assert.Equal(t, want, cellText(in), "%q", in)
	}
}

func TestExportRowEscapesText(t *testing.T) {
	h := &ExportHandler{Location: time.UTC}
	r := repository.ExportRow{
		Attendance: model.Attendance{
			ID:          7,
			ClassName:   "=1+1",
			TagNumber:   3,
			ServiceDate: "2024-06-02",
			CheckedInAt: time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC),
		},
		FirstName: "@Sam",
		LastName:  "Lee",
	}
	got := h.row(r)
	assert.Equal(t, "'@Sam", got[4])
	assert.Equal(t, "Lee", got[5])
	assert.Equal(t, "'=1+1", got[6])
	assert.Equal(t, "2024-06-02", got[1])
}
