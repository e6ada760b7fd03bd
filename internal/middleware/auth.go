package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/domain"
	"studiodesk/internal/pkg/response"
)

const tenantKey = "tenant"

// TokenParser validates a bearer token and returns who is acting for which
// studio.
type TokenParser interface {
	TenantContext(token string) (domain.TenantContext, error)
}

// JWTAuth requires a valid bearer token and stores the tenant context on the
// request. user_id, tenant_id and role are also set as plain keys for logging.
func JWTAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Error(c, http.StatusUnauthorized, "AUTH_HEADER_MISSING", "Authorization header is required")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		tc, err := tokens.TenantContext(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(tenantKey, tc)
		c.Set("user_id", tc.ActorID)
		c.Set("tenant_id", tc.TenantID)
		c.Set("role", tc.Role)
		c.Next()
	}
}

// Tenant returns the tenant context stored by JWTAuth.
func Tenant(c *gin.Context) (domain.TenantContext, bool) {
	v, ok := c.Get(tenantKey)
	if !ok {
		return domain.TenantContext{}, false
	}
	tc, ok := v.(domain.TenantContext)
	return tc, ok
}

// SetTenant is used by tests and tools that authenticate some other way.
func SetTenant(c *gin.Context, tc domain.TenantContext) {
	c.Set(tenantKey, tc)
	c.Set("user_id", tc.ActorID)
	c.Set("tenant_id", tc.TenantID)
	c.Set("role", tc.Role)
}
