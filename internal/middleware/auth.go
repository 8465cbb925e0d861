package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nexentia/backend/internal/auth"
	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/pkg/response"
)

// Auth returns a middleware that authenticates the request from its bearer
// access token. Identity and tenant context come purely from claims, so a
// revoked role persists until the token expires (bounded by the access TTL).
func Auth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := ""
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
		if token == "" {
			response.Unauthorized(c, "missing_token")
			c.Abort()
			return
		}
		claims, err := tokens.VerifyAccess(token)
		if err != nil {
			response.Unauthorized(c, "invalid_token")
			c.Abort()
			return
		}
		authctx.Set(c, authctx.AuthContext{
			User: authctx.Identity{UserID: claims.UserID, Email: claims.Email},
			Org:  authctx.OrgContext{OrganizationID: claims.OrgID, Role: claims.Role},
		})
		c.Next()
	}
}
