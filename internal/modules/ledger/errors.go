package ledger

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrAccountNotFound   = errors.New("account not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInsufficientFunds = errors.New("insufficient balance")
)
