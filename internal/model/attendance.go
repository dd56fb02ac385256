package model

import "time"

// Attendance is one check-in for one service day.  ChildID is nil for
// walk-ins that are not registered yet.
type Attendance struct {
	ID           uint64     `json:"id"`
	ChildID      *uint64    `json:"child_id,omitempty"`
	ClassName    string     `json:"class_name"`
	TagNumber    int        `json:"tag_number"`
	SecurityCode string     `json:"security_code,omitempty"`
	ServiceDate  string     `json:"service_date"` // YYYY-MM-DD
	CheckedInAt  time.Time  `json:"checked_in_at"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
	CheckedInBy  *uint64    `json:"checked_in_by,omitempty"`
	CheckedOutBy *uint64    `json:"checked_out_by,omitempty"`
}

// CheckedOut reports whether the record already has a checkout stamp.
func (a Attendance) CheckedOut() bool { return a.CheckedOutAt != nil }

// TagUsage marks a physical tag number as taken for a calendar date.
type TagUsage struct {
	ID           uint64    `json:"id"`
	TagNumber    int       `json:"tag_number"`
	UsageDate    string    `json:"usage_date"`
	AttendanceID uint64    `json:"attendance_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// TagOverrideLog records that a tag usage was replaced by a new check-in.
// PreviousUsageID points at a row that no longer exists.
type TagOverrideLog struct {
	ID              uint64    `json:"id"`
	TagNumber       int       `json:"tag_number"`
	UsageDate       string    `json:"usage_date"`
	PreviousUsageID uint64    `json:"previous_usage_id"`
	NewUsageID      uint64    `json:"new_usage_id"`
	OverriddenBy    *uint64   `json:"overridden_by,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
