package models

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceEvent records that a user was matched at a point in time.
// Never mutated after insert.
type AttendanceEvent struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	RecordedAt time.Time `json:"recorded_at" db:"recorded_at"`
}

// AttendanceEntry is an attendance event joined with the user's name,
// as returned by reporting queries (most-recent-first).
type AttendanceEntry struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	UserName   string    `json:"user_name"`
	RecordedAt time.Time `json:"recorded_at"`
}
