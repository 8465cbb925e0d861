package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a platform identity. A user may belong to several organizations;
// tenant context comes from the membership, never from the user itself.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

