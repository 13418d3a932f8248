/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All ledger error types in one place for consistency and discoverability.
  Callers should match with errors.Is(); structured errors carry context
  and unwrap to the sentinels.

SEE ALSO:
  - ledger.go: Uses these errors
  - store.go: Uses these errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a record amount is not a positive
	// whole number of minor currency units.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidRecord is returned when a record has a malformed holder
	// kind, direction, or status.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrDuplicateIdempotencyKey is returned when a record with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidAmountError reports why an amount was rejected.
type InvalidAmountError struct {
	Amount Amount
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s: must be a positive whole number of minor units", e.Amount)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}
