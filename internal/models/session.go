package models

import (
	"time"

	"github.com/google/uuid"
)

// Emotion is the dominant emotion label produced by the vision capability.
type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionSad      Emotion = "sad"
	EmotionAngry    Emotion = "angry"
	EmotionFear     Emotion = "fear"
	EmotionSurprise Emotion = "surprise"
	EmotionDisgust  Emotion = "disgust"
	EmotionNeutral  Emotion = "neutral"
)

// BoundingBox is a face region in frame pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// EmotionSession tracks one monitoring session for a user.
// Open while EndedAt is nil; the three aggregate fields are frozen at close.
type EmotionSession struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	UserID               uuid.UUID  `json:"user_id" db:"user_id"`
	StartedAt            time.Time  `json:"started_at" db:"started_at"`
	EndedAt              *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	TotalAttentionSecs   float64    `json:"total_attention_seconds" db:"total_attention_seconds"`
	TotalDurationSecs    float64    `json:"total_duration_seconds" db:"total_duration_seconds"`
	AttentionPercentage  float64    `json:"attention_percentage" db:"attention_percentage"`
}

// Open reports whether the session still accepts frame records.
func (s *EmotionSession) Open() bool {
	return s.EndedAt == nil
}

// EmotionRecord is one analyzed frame belonging to a session. Append-only.
type EmotionRecord struct {
	ID                   uuid.UUID    `json:"id" db:"id"`
	SessionID            uuid.UUID    `json:"session_id" db:"session_id"`
	RecordedAt           time.Time    `json:"recorded_at" db:"recorded_at"`
	DominantEmotion      Emotion      `json:"dominant_emotion" db:"dominant_emotion"`
	EmotionConfidence    float64      `json:"emotion_confidence" db:"emotion_confidence"`
	IsLookingAtCamera    bool         `json:"is_looking_at_camera" db:"is_looking_at_camera"`
	EyeContactConfidence float64      `json:"eye_contact_confidence" db:"eye_contact_confidence"`
	FaceBBox             *BoundingBox `json:"face_bbox,omitempty" db:"-"`
}
