package dto

import "github.com/google/uuid"

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	PhotoKey  string    `json:"photo_key,omitempty"`
	CreatedAt string    `json:"created_at"`
}
