package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"studiodesk/internal/logging"
	"studiodesk/internal/pkg/response"
)

// InternalTokenAuth protects operator endpoints with a static bearer token.
// With no token configured the endpoints are closed.
func InternalTokenAuth(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if expected == "" {
			logAuthFailure(c, http.StatusForbidden, "token_not_configured")
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "Internal endpoints are disabled")
			c.Abort()
			return
		}

		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			logAuthFailure(c, http.StatusUnauthorized, "invalid_auth_format")
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
			logAuthFailure(c, http.StatusForbidden, "invalid_token")
			response.Error(c, http.StatusForbidden, response.CodeForbidden, "Invalid internal token")
			c.Abort()
			return
		}

		c.Next()
	}
}

func logAuthFailure(c *gin.Context, status int, reason string) {
	logging.GetLogger().WithFields(logrus.Fields{
		"status":     status,
		"request_id": requestID(c),
		"reason":     reason,
		"client_ip":  c.ClientIP(),
	}).Warn("internal auth rejected")
}
