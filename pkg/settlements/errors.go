package settlements

import (
	"github.com/marinade-finance/bonds-settlements/internal/types/invariants"
	"github.com/marinade-finance/bonds-settlements/internal/types/numbers"
)

// Fatal error kinds of a settlement run. Every generator and assembler wraps
// one of these so callers can test with errors.Is.
var (
	ErrConversionOverflow = numbers.ErrConversionOverflow
	ErrInvariantViolation = invariants.ErrInvariantViolation
	ErrEpochMismatch      = invariants.ErrEpochMismatch
)
