package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/pkg/response"
)

// RequireRole returns a middleware that rejects callers whose role ranks
// strictly below the minimum. FINANCE and ACCOUNTANT rank equal, so a gate
// at one admits the other.
func RequireRole(min models.Role) gin.HandlerFunc {
	minRank := min.Rank()
	return func(c *gin.Context) {
		ac, ok := authctx.From(c)
		if !ok || ac.Org.OrganizationID == uuid.Nil {
			response.Forbidden(c, "missing_org_context")
			c.Abort()
			return
		}
		if ac.Org.Role.Rank() < minRank {
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}
		c.Next()
	}
}
