package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog is an immutable record of one mutation, scoped to the acting
// organization. Before/After are opaque snapshots captured by the caller.
type AuditLog struct {
	ID             uuid.UUID       `json:"id"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entity_type,omitempty"`
	EntityID       string          `json:"entity_id,omitempty"`
	Before         json.RawMessage `json:"before,omitempty"`
	After          json.RawMessage `json:"after,omitempty"`
	IP             string          `json:"ip,omitempty"`
	UserAgent      string          `json:"user_agent,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
