// Package authctx carries the authenticated request context through gin.
// It sits below both the middleware that produces the context and the
// packages that consume it, so neither has to import the other.
package authctx

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexentia/backend/internal/models"
)

// key is the gin context key holding the request's AuthContext.
const key = "auth_context"

// Identity is the authenticated caller, taken from access-token claims.
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// OrgContext is the tenant context the request acts under: one organization
// and the caller's role there.
type OrgContext struct {
	OrganizationID uuid.UUID
	Role           models.Role
}

// AuthContext is the immutable request context produced by the auth
// middleware. It is set once and only read afterwards; handlers never
// mutate identity fields.
type AuthContext struct {
	User Identity
	Org  OrgContext
}

// Set stores the request's AuthContext. Normally only the auth middleware
// calls this; tests use it to stage authenticated requests.
func Set(c *gin.Context, ac AuthContext) {
	c.Set(key, ac)
}

// From returns the request's AuthContext, if the auth middleware ran.
func From(c *gin.Context) (AuthContext, bool) {
	v, ok := c.Get(key)
	if !ok {
		return AuthContext{}, false
	}
	ac, ok := v.(AuthContext)
	return ac, ok
}
