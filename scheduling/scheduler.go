/*
Package scheduling implements the booking state machine.

PURPOSE:
  A requester asks for a session with a provider at a specific time.
  The scheduler creates the session in PENDING state, and only the
  addressed provider may decide it:

      PENDING --(provider accepts)--> ACCEPTED
      PENDING --(provider rejects)--> REJECTED

  ACCEPTED and REJECTED are terminal here; running the session and
  completing it belong to the session-lifecycle collaborator.

THE BOOKING RACE:
  The correctness-critical invariant: for a given (provider, scheduledAt)
  at most one session may be PENDING or ACCEPTED at a time. The
  check-then-create must be atomic with respect to other concurrent
  Request calls for the same key. That atomicity lives in the Store:
  CreateSession enforces a uniqueness constraint over live sessions and
  reports violations as ErrSlotAlreadyBooked. Two concurrent requesters
  can both observe "no conflict", but only one insert wins.

  A REJECTED session frees the key: the same requester (or another) may
  request the slot again.

SESSIONS AND SLOTS:
  A session references the slot's (providerID, scheduledAt) pair by
  value, not by foreign key. Deleting a published slot does not cascade
  into booked sessions.

SEE ALSO:
  - availability: Slot publication; its cache is advisory, this package
    is the enforcement point
  - store/sqlite: Partial unique index backing CreateSession
*/
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solace/session-engine/identity"
)

// =============================================================================
// SESSION REQUEST - The booking entity
// =============================================================================

type SessionStatus string

const (
	StatusPending  SessionStatus = "pending"
	StatusAccepted SessionStatus = "accepted"
	StatusRejected SessionStatus = "rejected"
)

// Live reports whether the status blocks rebooking of the same slot.
func (s SessionStatus) Live() bool {
	return s == StatusPending || s == StatusAccepted
}

type SessionRequest struct {
	ID          string
	RequesterID string
	ProviderID  string
	ScheduledAt time.Time
	Status      SessionStatus
	CreatedAt   time.Time
	DecidedAt   *time.Time
}

// =============================================================================
// STORE - Session persistence with conflict enforcement
// =============================================================================

type Store interface {
	// CreateSession inserts a PENDING session. Returns
	// ErrSlotAlreadyBooked (possibly wrapped) if a live session already
	// holds (ProviderID, ScheduledAt). The conflict check and the insert
	// are one atomic unit.
	CreateSession(ctx context.Context, s SessionRequest) error

	// GetSession returns a session by id, or ErrSessionNotFound.
	GetSession(ctx context.Context, id string) (*SessionRequest, error)

	// ListSessions returns the provider's sessions ordered by ScheduledAt
	// ascending, optionally filtered to the given statuses.
	ListSessions(ctx context.Context, providerID string, statuses ...SessionStatus) ([]SessionRequest, error)

	// DecideSession transitions a session from PENDING to the given
	// status, compare-and-set style. Returns ErrInvalidTransition if the
	// session is no longer PENDING, ErrSessionNotFound if it is unknown.
	DecideSession(ctx context.Context, id string, to SessionStatus, decidedAt time.Time) error
}

// =============================================================================
// SCHEDULER
// =============================================================================

type Scheduler struct {
	Store     Store
	Directory identity.ProviderDirectory
	Logger    *zap.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewScheduler(store Store, directory identity.ProviderDirectory, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Store:     store,
		Directory: directory,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Request creates a PENDING session for (providerID, scheduledAt).
// Fails with ErrProviderUnavailable if the provider is missing or not
// approved, and ErrSlotAlreadyBooked if a live session holds the key.
func (sc *Scheduler) Request(ctx context.Context, requesterID, providerID string, scheduledAt time.Time) (*SessionRequest, error) {
	provider, err := sc.Directory.Provider(ctx, providerID)
	if err != nil {
		if errors.Is(err, identity.ErrProviderNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, providerID)
		}
		return nil, fmt.Errorf("provider lookup: %w", err)
	}
	if !provider.Eligible() {
		return nil, fmt.Errorf("%w: %s is %s", ErrProviderUnavailable, providerID, provider.Status)
	}

	session := SessionRequest{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		ProviderID:  providerID,
		ScheduledAt: scheduledAt.UTC(),
		Status:      StatusPending,
		CreatedAt:   sc.now().UTC(),
	}

	if err := sc.Store.CreateSession(ctx, session); err != nil {
		if errors.Is(err, ErrSlotAlreadyBooked) {
			sc.Logger.Debug("booking race lost",
				zap.String("provider_id", providerID),
				zap.Time("scheduled_at", session.ScheduledAt))
		}
		return nil, err
	}

	return &session, nil
}

// ListPendingFor returns the provider's PENDING sessions, soonest first.
func (sc *Scheduler) ListPendingFor(ctx context.Context, providerID string) ([]SessionRequest, error) {
	return sc.Store.ListSessions(ctx, providerID, StatusPending)
}

// ListForProvider returns all of the provider's sessions, soonest first.
func (sc *Scheduler) ListForProvider(ctx context.Context, providerID string) ([]SessionRequest, error) {
	return sc.Store.ListSessions(ctx, providerID)
}

// SetStatus transitions a PENDING session to ACCEPTED or REJECTED.
// Only the addressed provider may decide; decided sessions stay decided.
func (sc *Scheduler) SetStatus(ctx context.Context, actorID, sessionID string, newStatus SessionStatus) (*SessionRequest, error) {
	if newStatus != StatusAccepted && newStatus != StatusRejected {
		return nil, fmt.Errorf("%w: target status must be accepted or rejected, got %q", ErrInvalidTransition, newStatus)
	}

	session, err := sc.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.ProviderID != actorID {
		return nil, fmt.Errorf("%w: only provider %s may decide session %s", ErrForbidden, session.ProviderID, sessionID)
	}

	if session.Status != StatusPending {
		return nil, &InvalidTransitionError{SessionID: sessionID, Current: session.Status, Attempted: newStatus}
	}

	decidedAt := sc.now().UTC()
	if err := sc.Store.DecideSession(ctx, sessionID, newStatus, decidedAt); err != nil {
		return nil, err
	}

	session.Status = newStatus
	session.DecidedAt = &decidedAt
	return session, nil
}

func (sc *Scheduler) now() time.Time {
	if sc.Now != nil {
		return sc.Now()
	}
	return time.Now()
}
