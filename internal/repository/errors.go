// Package repository defines error types that are reused across multiple
// repositories.  Handlers use them to pick an HTTP status: the not-found
// values map to 404, ErrConflict and ErrDuplicate to 409.
package repository

import "errors"

// ErrConflict is returned when a delete cannot proceed because other rows
// still depend on the target (e.g. a class that children are assigned to).
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert or update violates a unique
// constraint.
var ErrDuplicate = errors.New("duplicate")

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrChildNotFound      = errors.New("child not found")
	ErrParentNotFound     = errors.New("parent not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrTagUsageNotFound   = errors.New("tag usage not found")
	ErrSettingNotFound    = errors.New("setting not found")
)
