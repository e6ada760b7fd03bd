package scheduling

import (
	"errors"
	"fmt"
)

var ErrConflict = errors.New("booking conflict")

// ConflictError names the booking that blocks the candidate slot. Start and
// End describe the blocking booking's busy interval, buffer included.
type ConflictError struct {
	BookingID  string
	ClientName string
	Room       string
	Date       string
	Start      string
	End        string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s already holds %s on %s from %s to %s",
		ErrConflict, e.ClientName, e.Room, e.Date, e.Start, e.End)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
