package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/pkg/response"
)

// RequireRole lets the request through when the token's role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		tc, ok := Tenant(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Role not found in token")
			c.Abort()
			return
		}

		if !allowed[tc.Role] {
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "Access denied: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// OwnerOnly guards studio-wide settings.
func OwnerOnly() gin.HandlerFunc {
	return RequireRole("owner")
}
