package domain

import "errors"

// Error kinds reported by the core. Callers match them with errors.Is; the
// wrapping error carries the details.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrLimitExceeded   = errors.New("daily usage limit exceeded")
	ErrBudgetExhausted = errors.New("campaign budget exhausted")
	ErrNotEligible     = errors.New("campaign not eligible")
	ErrConflict        = errors.New("conflict")
)
