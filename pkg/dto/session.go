package dto

import "github.com/google/uuid"

type StartSessionRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type SessionResponse struct {
	ID                    uuid.UUID `json:"id"`
	UserID                uuid.UUID `json:"user_id"`
	StartedAt             string    `json:"started_at"`
	EndedAt               *string   `json:"ended_at,omitempty"`
	TotalAttentionSeconds float64   `json:"total_attention_seconds"`
	TotalDurationSeconds  float64   `json:"total_duration_seconds"`
	AttentionPercentage   float64   `json:"attention_percentage"`
	Open                  bool      `json:"open"`
	Resumed               bool      `json:"resumed,omitempty"`
}

type BBoxResponse struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FrameResponse echoes the per-frame analysis back to the caller.
type FrameResponse struct {
	SessionID            uuid.UUID     `json:"session_id"`
	DominantEmotion      string        `json:"dominant_emotion"`
	EmotionConfidence    float64       `json:"emotion_confidence"`
	IsLookingAtCamera    bool          `json:"is_looking_at_camera"`
	EyeContactConfidence float64       `json:"eye_contact_confidence"`
	FaceBBox             *BBoxResponse `json:"face_bbox,omitempty"`
}
