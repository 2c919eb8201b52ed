package models

import (
	"time"

	"github.com/google/uuid"
)

// LiveEventType distinguishes messages on the live event feed.
type LiveEventType string

const (
	LiveEventAttendance     LiveEventType = "attendance_recorded"
	LiveEventSessionStarted LiveEventType = "session_started"
	LiveEventSessionEnded   LiveEventType = "session_ended"
)

// LiveEvent is published to NATS after a successful write and broadcast
// to WebSocket subscribers.
type LiveEvent struct {
	Type      LiveEventType `json:"type"`
	UserID    uuid.UUID     `json:"user_id"`
	UserName  string        `json:"user_name,omitempty"`
	SessionID *uuid.UUID    `json:"session_id,omitempty"`
	Score     float64       `json:"score,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
