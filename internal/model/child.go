package model

import "time"

// Child is a registered child.  Archived children keep their attendance
// history but are skipped by the weekly irregularity job.
type Child struct {
	ID        uint64    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	BirthDate *string   `json:"birth_date,omitempty"` // YYYY-MM-DD
	ParentID  *uint64   `json:"parent_id,omitempty"`
	ClassID   *uint64   `json:"class_id,omitempty"`
	Allergies string    `json:"allergies"`
	Notes     string    `json:"notes"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Parent is a guardian contact.
type Parent struct {
	ID        uint64    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Class is a room or age group children are checked into.
type Class struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	MinAge    *int      `json:"min_age,omitempty"`
	MaxAge    *int      `json:"max_age,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
