package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/logging"
	"studiodesk/internal/pkg/response"
)

const FinancePINHeader = "X-Finance-PIN"

// PINVerifier reports whether the studio has a finance PIN and, if so,
// whether pin matches it.
type PINVerifier interface {
	VerifyFinancePIN(ctx context.Context, tenantID, pin string) (required bool, ok bool, err error)
}

// FinancePIN gates the finance routes behind the studio PIN when one is set.
func FinancePIN(v PINVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := Tenant(c)
		if !ok {
			response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
			c.Abort()
			return
		}

		required, valid, err := v.VerifyFinancePIN(c.Request.Context(), tc.TenantID, c.GetHeader(FinancePINHeader))
		if err != nil {
			logging.LogError(logging.GetLogger(), "middleware", "FinancePIN", "pin lookup failed", tc.TenantID, err)
			response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Failed to verify PIN")
			c.Abort()
			return
		}
		if required && !valid {
			response.Error(c, http.StatusForbidden, response.CodePINRequired, "Finance PIN is missing or wrong")
			c.Abort()
			return
		}

		c.Next()
	}
}
