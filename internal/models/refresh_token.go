package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the stored record backing one issued refresh token. Only
// the bcrypt hash of the token is persisted; the token itself is returned to
// the client once and never stored. A record is usable while unexpired and
// unrevoked.
type RefreshToken struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Active reports whether the record can still back a refresh at time now.
func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && t.ExpiresAt.After(now)
}
