package response

import "github.com/gin-gonic/gin"

const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeBookingConflict   = "BOOKING_CONFLICT"
	CodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	CodeBookingNotFound   = "BOOKING_NOT_FOUND"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodePINRequired       = "FINANCE_PIN_REQUIRED"
	CodeInternal          = "INTERNAL_ERROR"
	CodeLockUnavailable   = "LOCK_UNAVAILABLE"
	CodeStaleRecord       = "STALE_RECORD"
)

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
