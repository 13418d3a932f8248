/*
errors.go - Centralized error types for the payout workflow

PURPOSE:
  Each validation rule and conflict in the workflow is a distinct
  sentinel, in validation order: BelowMinimum, AboveMaximum,
  RequestAlreadyPending, InsufficientBalance. Callers must be able to
  tell them apart; none is ever collapsed into a generic failure.
*/
package payout

import (
	"errors"
	"fmt"

	"github.com/solace/session-engine/ledger"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrBelowMinimum is returned when the requested amount is under the
	// configured minimum payout.
	ErrBelowMinimum = errors.New("amount below minimum payout")

	// ErrAboveMaximum is returned when the requested amount exceeds the
	// configured maximum payout.
	ErrAboveMaximum = errors.New("amount above maximum payout")

	// ErrRequestAlreadyPending is returned when the holder already has a
	// payout request in REQUESTED status.
	ErrRequestAlreadyPending = errors.New("payout request already pending")

	// ErrInsufficientBalance is returned when the requested amount exceeds
	// the holder's available earnings (settled balance minus outstanding
	// requested amounts).
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidState is returned when a transition is attempted on a
	// payout that is not in the expected status.
	ErrInvalidState = errors.New("payout in invalid state for transition")

	// ErrPayoutNotFound is returned for unknown payout ids.
	ErrPayoutNotFound = errors.New("payout not found")

	// ErrTransferFailed wraps failures of the external transfer
	// collaborator. The payout stays in its prior status.
	ErrTransferFailed = errors.New("transfer failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError reports the shortage.
type InsufficientBalanceError struct {
	HolderID  ledger.HolderID
	Available ledger.Amount
	Requested ledger.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s: available %s, requested %s",
		e.HolderID, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidStateError reports the payout's actual status.
type InvalidStateError struct {
	PayoutID string
	Current  Status
	Expected Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("payout %s is %s, expected %s", e.PayoutID, e.Current, e.Expected)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }
