package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant. Every resource in the system is scoped
// to exactly one organization.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
