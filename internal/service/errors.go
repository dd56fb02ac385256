// Package service holds the check-in workflow and the weekly irregularity
// computation.  Handlers translate its errors into HTTP statuses.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrTagInUse is matched by errors.Is on a *TagInUseError.
	ErrTagInUse          = errors.New("tag already in use")
	ErrInvalidCode       = errors.New("invalid security code")
	ErrAlreadyCheckedOut = errors.New("already checked out")
	ErrChildArchived     = errors.New("child is archived")
	ErrJobRunning        = errors.New("irregularity job already running")
)

// TagInUseError reports the usage that currently holds a tag for the day.
type TagInUseError struct {
	ExistingUsageID uint64
}

func (e *TagInUseError) Error() string {
	return fmt.Sprintf("%s (usage %d)", ErrTagInUse, e.ExistingUsageID)
}

func (e *TagInUseError) Is(target error) bool { return target == ErrTagInUse }
