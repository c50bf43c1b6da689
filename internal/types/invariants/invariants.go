package invariants

import "errors"

var (
	// ErrInvariantViolation marks a broken accounting or structural invariant.
	// It is always fatal for the run.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrEpochMismatch marks inputs that were captured for different epochs or slots.
	ErrEpochMismatch = errors.New("epoch mismatch")
)
