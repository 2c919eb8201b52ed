package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered identity: one face photo, one embedding.
// Immutable after registration.
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	PhotoKey  string    `json:"photo_key" db:"photo_key"`
	Embedding []float32 `json:"-" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
