package model

import "time"

// SystemFlag holds the result of the weekly irregularity job for a child.
// WindowStart and WindowEnd are the oldest and newest of the four Sundays
// that were checked.
type SystemFlag struct {
	ChildID     uint64    `json:"child_id"`
	Irregular   bool      `json:"irregular"`
	WindowStart string    `json:"window_start"`
	WindowEnd   string    `json:"window_end"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Setting is a key/value pair editable by admins.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
