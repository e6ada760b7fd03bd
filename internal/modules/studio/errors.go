package studio

import (
	"fmt"

	"studiodesk/internal/modules/ledger"
)

var (
	ErrValidation = ledger.ErrValidation
	ErrInvalidPIN = fmt.Errorf("%w: PIN must be 4 to 6 digits", ledger.ErrValidation)
)
