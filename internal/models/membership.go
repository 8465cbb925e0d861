package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a member's role within one organization. Roles form a closed set
// with an explicit rank used for minimum-privilege gating.
type Role string

const (
	RoleOwner      Role = "OWNER"
	RoleAdmin      Role = "ADMIN"
	RoleFinance    Role = "FINANCE"
	RoleSales      Role = "SALES"
	RoleAccountant Role = "ACCOUNTANT"
	RoleViewer     Role = "VIEWER"
)

// Rank returns the privilege rank of the role. FINANCE and ACCOUNTANT are
// tied on purpose: an operation gated at one is satisfied by the other.
// Unknown roles rank 0 and satisfy nothing.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 5
	case RoleAdmin:
		return 4
	case RoleFinance, RoleAccountant:
		return 3
	case RoleSales:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// Membership binds one user to one organization with one role. It is the
// unit of tenant-scoped authorization.
type Membership struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
