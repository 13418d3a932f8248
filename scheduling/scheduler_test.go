package scheduling_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solace/session-engine/identity"
	"github.com/solace/session-engine/scheduling"
	"github.com/solace/session-engine/store/memory"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestScheduler(t *testing.T) (*scheduling.Scheduler, *memory.Memory) {
	store := memory.New()
	sc := scheduling.NewScheduler(store, store, nil)
	seedProvider(t, store, "prov-1", identity.ProviderApproved)
	return sc, store
}

func seedProvider(t *testing.T, store *memory.Memory, id string, status identity.ProviderStatus) {
	t.Helper()
	err := store.SaveProvider(context.Background(), identity.Provider{
		ID:          id,
		DisplayName: "Provider " + id,
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
}

func slotTime() time.Time {
	return time.Date(2026, time.March, 13, 15, 0, 0, 0, time.UTC)
}

// =============================================================================
// ELIGIBILITY TESTS
// =============================================================================

func TestRequest_ApprovedProvider_CreatesPending(t *testing.T) {
	// GIVEN: An approved provider
	// WHEN: A requester books a slot
	// THEN: A PENDING session is created

	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	session, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, scheduling.StatusPending, session.Status)
	assert.Equal(t, "req-1", session.RequesterID)
	assert.Nil(t, session.DecidedAt)
}

func TestRequest_UnknownProvider_Unavailable(t *testing.T) {
	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	_, err := sc.Request(ctx, "req-1", "ghost", slotTime())
	assert.True(t, errors.Is(err, scheduling.ErrProviderUnavailable))
}

func TestRequest_PendingProvider_Unavailable(t *testing.T) {
	// GIVEN: A provider that has registered but is not yet approved
	// WHEN: A requester tries to book
	// THEN: ErrProviderUnavailable - only approved providers take bookings

	ctx := context.Background()
	sc, store := newTestScheduler(t)
	seedProvider(t, store, "prov-new", identity.ProviderPending)

	_, err := sc.Request(ctx, "req-1", "prov-new", slotTime())
	assert.True(t, errors.Is(err, scheduling.ErrProviderUnavailable))
}

func TestRequest_SuspendedProvider_Unavailable(t *testing.T) {
	ctx := context.Background()
	sc, store := newTestScheduler(t)
	seedProvider(t, store, "prov-sus", identity.ProviderSuspended)

	_, err := sc.Request(ctx, "req-1", "prov-sus", slotTime())
	assert.True(t, errors.Is(err, scheduling.ErrProviderUnavailable))
}

// =============================================================================
// BOOKING CONFLICT TESTS
// =============================================================================

func TestRequest_LiveSessionBlocksSlot(t *testing.T) {
	// GIVEN: req-1 holds a PENDING session for (prov-1, 15:00)
	// WHEN: req-2 requests the same slot
	// THEN: ErrSlotAlreadyBooked

	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	_, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)

	_, err = sc.Request(ctx, "req-2", "prov-1", slotTime())
	assert.True(t, errors.Is(err, scheduling.ErrSlotAlreadyBooked))
}

func TestRequest_AcceptedSessionBlocksSlot(t *testing.T) {
	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	session, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)
	_, err = sc.SetStatus(ctx, "prov-1", session.ID, scheduling.StatusAccepted)
	require.NoError(t, err)

	_, err = sc.Request(ctx, "req-2", "prov-1", slotTime())
	assert.True(t, errors.Is(err, scheduling.ErrSlotAlreadyBooked))
}

func TestRequest_RejectedSessionFreesSlot(t *testing.T) {
	// GIVEN: A session for the slot was rejected
	// WHEN: Another requester requests the same slot
	// THEN: The booking succeeds - rejection releases the key

	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	session, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)
	_, err = sc.SetStatus(ctx, "prov-1", session.ID, scheduling.StatusRejected)
	require.NoError(t, err)

	_, err = sc.Request(ctx, "req-2", "prov-1", slotTime())
	assert.NoError(t, err)
}

func TestRequest_DifferentTimes_BothSucceed(t *testing.T) {
	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	_, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)

	_, err = sc.Request(ctx, "req-2", "prov-1", slotTime().Add(time.Hour))
	assert.NoError(t, err)
}

func TestRequest_ConcurrentSameSlot_ExactlyOneWins(t *testing.T) {
	// GIVEN: Ten requesters racing for the same (provider, scheduledAt)
	// WHEN: All request concurrently
	// THEN: Exactly one session is created; the rest get ErrSlotAlreadyBooked

	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	const racers = 10
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = sc.Request(ctx, "req-racer", "prov-1", slotTime())
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, scheduling.ErrSlotAlreadyBooked):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, conflicts)

	pending, err := sc.ListPendingFor(ctx, "prov-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

// =============================================================================
// DECISION TESTS
// =============================================================================

func TestSetStatus_ProviderAccepts(t *testing.T) {
	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	session, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)

	decided, err := sc.SetStatus(ctx, "prov-1", session.ID, scheduling.StatusAccepted)
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusAccepted, decided.Status)
	require.NotNil(t, decided.DecidedAt)
}

func TestSetStatus_WrongProvider_Forbidden(t *testing.T) {
	// GIVEN: A session addressed to prov-1
	// WHEN: prov-2 tries to accept it
	// THEN: ErrForbidden and the session stays PENDING

	ctx := context.Background()
	sc, store := newTestScheduler(t)
	seedProvider(t, store, "prov-2", identity.ProviderApproved)

	session, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)

	_, err = sc.SetStatus(ctx, "prov-2", session.ID, scheduling.StatusAccepted)
	assert.True(t, errors.Is(err, scheduling.ErrForbidden))

	pending, err := sc.ListPendingFor(ctx, "prov-1")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestSetStatus_AlreadyDecided_InvalidTransition(t *testing.T) {
	// GIVEN: An already-accepted session
	// WHEN: The provider decides it again
	// THEN: ErrInvalidTransition - decisions are one-shot

	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	session, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)
	_, err = sc.SetStatus(ctx, "prov-1", session.ID, scheduling.StatusAccepted)
	require.NoError(t, err)

	_, err = sc.SetStatus(ctx, "prov-1", session.ID, scheduling.StatusRejected)
	require.Error(t, err)
	assert.True(t, errors.Is(err, scheduling.ErrInvalidTransition))

	var transitionErr *scheduling.InvalidTransitionError
	require.True(t, errors.As(err, &transitionErr))
	assert.Equal(t, scheduling.StatusAccepted, transitionErr.Current)
}

func TestSetStatus_PendingTarget_Rejected(t *testing.T) {
	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	session, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)

	_, err = sc.SetStatus(ctx, "prov-1", session.ID, scheduling.StatusPending)
	assert.True(t, errors.Is(err, scheduling.ErrInvalidTransition))
}

func TestSetStatus_UnknownSession_NotFound(t *testing.T) {
	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	_, err := sc.SetStatus(ctx, "prov-1", "nope", scheduling.StatusAccepted)
	assert.True(t, errors.Is(err, scheduling.ErrSessionNotFound))
}

// =============================================================================
// LISTING TESTS
// =============================================================================

func TestListPendingFor_FiltersDecided(t *testing.T) {
	// GIVEN: One pending, one accepted, one rejected session
	// WHEN: Listing pending
	// THEN: Only the pending session is returned; ListForProvider sees all

	ctx := context.Background()
	sc, _ := newTestScheduler(t)

	first, err := sc.Request(ctx, "req-1", "prov-1", slotTime())
	require.NoError(t, err)
	second, err := sc.Request(ctx, "req-2", "prov-1", slotTime().Add(time.Hour))
	require.NoError(t, err)
	_, err = sc.Request(ctx, "req-3", "prov-1", slotTime().Add(2*time.Hour))
	require.NoError(t, err)

	_, err = sc.SetStatus(ctx, "prov-1", first.ID, scheduling.StatusAccepted)
	require.NoError(t, err)
	_, err = sc.SetStatus(ctx, "prov-1", second.ID, scheduling.StatusRejected)
	require.NoError(t, err)

	pending, err := sc.ListPendingFor(ctx, "prov-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "req-3", pending[0].RequesterID)

	all, err := sc.ListForProvider(ctx, "prov-1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
