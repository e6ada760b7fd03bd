package booking

import (
	"fmt"

	"studiodesk/internal/modules/ledger"
)

var (
	ErrValidation        = ledger.ErrValidation
	ErrNotFound          = ledger.ErrBookingNotFound
	ErrInvalidTransition = fmt.Errorf("%w: status change not allowed", ledger.ErrValidation)
	ErrUnknownRoom       = fmt.Errorf("%w: room is not configured for this studio", ledger.ErrValidation)
)
