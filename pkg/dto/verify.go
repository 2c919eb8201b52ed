package dto

import "github.com/google/uuid"

// VerifyResponse is returned when a probe image matches a registered user.
// Dedup is true when attendance was already recorded inside the dedup
// window; RecordedAt then refers to the original event.
type VerifyResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Score      float64   `json:"score"`
	Created    bool      `json:"created"`
	Dedup      bool      `json:"dedup"`
	EventID    uuid.UUID `json:"event_id"`
	RecordedAt string    `json:"recorded_at"`
}

// NoMatchResponse reports the best similarity seen when no candidate
// cleared the threshold.
type NoMatchResponse struct {
	Error     string  `json:"error"`
	BestScore float64 `json:"best_score"`
	Threshold float64 `json:"threshold"`
}

// StreamVerifyResponse is the compact per-frame result for the camera
// agent's continuous verification loop. UserID is null when the frame
// did not match.
type StreamVerifyResponse struct {
	UserID  *uuid.UUID `json:"user_id"`
	Name    string     `json:"name,omitempty"`
	Score   float64    `json:"score"`
	Created bool       `json:"created"`
}

type AttendanceEntryResponse struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	RecordedAt string    `json:"recorded_at"`
}
