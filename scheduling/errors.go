/*
errors.go - Centralized error types for the session scheduler

PURPOSE:
  Every failure mode of the booking flow is a distinct sentinel so the
  transport layer can report it precisely. Conflict errors represent a
  losing race or an out-of-order action and are definitive rejections;
  the caller may resubmit with different parameters, the core never
  retries.
*/
package scheduling

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProviderUnavailable is returned when the addressed provider does
	// not exist or is not in an approved state.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSlotAlreadyBooked is returned when a PENDING or ACCEPTED session
	// already holds the (provider, scheduledAt) key.
	ErrSlotAlreadyBooked = errors.New("slot already booked")

	// ErrForbidden is returned when an actor other than the addressed
	// provider attempts a status transition.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition is returned when a transition is attempted on a
	// session that is no longer PENDING.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = errors.New("session not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// SlotAlreadyBookedError identifies the contested key.
type SlotAlreadyBookedError struct {
	ProviderID  string
	ScheduledAt time.Time
}

func (e *SlotAlreadyBookedError) Error() string {
	return fmt.Sprintf("slot already booked: provider %s at %s",
		e.ProviderID, e.ScheduledAt.Format(time.RFC3339))
}

func (e *SlotAlreadyBookedError) Unwrap() error { return ErrSlotAlreadyBooked }

// InvalidTransitionError reports the session's actual status.
type InvalidTransitionError struct {
	SessionID string
	Current   SessionStatus
	Attempted SessionStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("session %s is %s, cannot transition to %s",
		e.SessionID, e.Current, e.Attempted)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
