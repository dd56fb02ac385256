// Package queue defines the checkout event and moves it over RabbitMQ.
package queue

import (
	"time"

	"github.com/google/uuid"
)

// CheckoutEvent is published when a child is picked up.  It carries enough
// for downstream consumers to notify or log without querying the database.
type CheckoutEvent struct {
	EventID      string  `json:"event_id"`
	AttendanceID uint64  `json:"attendance_id"`
	ChildID      *uint64 `json:"child_id,omitempty"`
	ChildName    string  `json:"child_name,omitempty"`
	ClassName    string  `json:"class_name"`
	TagNumber    int     `json:"tag_number"`
	ServiceDate  string  `json:"service_date"`
	CheckedInAt  string  `json:"checked_in_at"`
	CheckedOutAt string  `json:"checked_out_at"`
	CheckedOutBy *uint64 `json:"checked_out_by,omitempty"`
}

// NewCheckoutEvent stamps a fresh event id and formats the times as RFC 3339.
func NewCheckoutEvent(attendanceID uint64, className string, tag int, date string, in, out time.Time) CheckoutEvent {
	return CheckoutEvent{
		EventID:      uuid.NewString(),
		AttendanceID: attendanceID,
		ClassName:    className,
		TagNumber:    tag,
		ServiceDate:  date,
		CheckedInAt:  in.UTC().Format(time.RFC3339),
		CheckedOutAt: out.UTC().Format(time.RFC3339),
	}
}
