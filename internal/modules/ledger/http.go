package ledger

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studiodesk/internal/domain"
	"studiodesk/internal/lock"
	"studiodesk/internal/logging"
	"studiodesk/internal/modules/scheduling"
	"studiodesk/internal/pkg/response"
	"studiodesk/internal/repository"
)

// ErrorStatus maps a service error to the HTTP status and error code the API
// answers with.
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, scheduling.ErrConflict):
		return http.StatusConflict, response.CodeBookingConflict
	case errors.Is(err, ErrAccountNotFound):
		return http.StatusNotFound, response.CodeAccountNotFound
	case errors.Is(err, ErrBookingNotFound):
		return http.StatusNotFound, response.CodeBookingNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, response.CodeInsufficientFunds
	case errors.Is(err, ErrValidation),
		errors.Is(err, domain.ErrInvalidClock),
		errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrItemTotal),
		errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, response.CodeValidation
	case errors.Is(err, repository.ErrStale):
		return http.StatusConflict, response.CodeStaleRecord
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, response.CodeNotFound
	case errors.Is(err, domain.ErrNoTenant):
		return http.StatusUnauthorized, response.CodeUnauthorized
	case errors.Is(err, lock.ErrNotObtained):
		return http.StatusServiceUnavailable, response.CodeLockUnavailable
	}
	return http.StatusInternalServerError, response.CodeInternal
}

// WriteError answers with the mapped envelope. Internal failures are logged
// and their text is not shown to the client.
func WriteError(c *gin.Context, module, funcName string, err error) {
	status, code := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.LogError(logging.GetLogger(), module, funcName, c.Request.URL.Path, c.GetString("tenant_id"), err)
		_ = c.Error(err)
		response.Error(c, status, code, "Something went wrong, please try again")
		return
	}

	var ce *scheduling.ConflictError
	if errors.As(err, &ce) {
		response.ErrorWithDetails(c, status, code, err.Error(), gin.H{
			"booking_id":  ce.BookingID,
			"client_name": ce.ClientName,
			"room":        ce.Room,
			"date":        ce.Date,
			"start":       ce.Start,
			"end":         ce.End,
		})
		return
	}
	response.Error(c, status, code, err.Error())
}
