package sqlite_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solace/session-engine/availability"
	"github.com/solace/session-engine/identity"
	"github.com/solace/session-engine/ledger"
	"github.com/solace/session-engine/payout"
	"github.com/solace/session-engine/scheduling"
	"github.com/solace/session-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func settledCredit(id, holder string, amount int64, key string) ledger.Record {
	return ledger.Record{
		ID:             ledger.RecordID(id),
		HolderID:       ledger.HolderID(holder),
		Kind:           ledger.KindEarnings,
		Amount:         ledger.NewAmount(amount),
		Direction:      ledger.Credit,
		Status:         ledger.StatusSettled,
		IdempotencyKey: key,
		CreatedAt:      time.Now().UTC(),
	}
}

func pendingSession(id, provider string, at time.Time) scheduling.SessionRequest {
	return scheduling.SessionRequest{
		ID:          id,
		RequesterID: "req-1",
		ProviderID:  provider,
		ScheduledAt: at,
		Status:      scheduling.StatusPending,
		CreatedAt:   time.Now().UTC(),
	}
}

func requestedPayout(id, holder string, amount int64) payout.PayoutRequest {
	return payout.PayoutRequest{
		ID:          id,
		HolderID:    ledger.HolderID(holder),
		Amount:      ledger.NewAmount(amount),
		Status:      payout.StatusRequested,
		RequestedAt: time.Now().UTC(),
	}
}

var slotAt = time.Date(2026, time.March, 13, 15, 0, 0, 0, time.UTC)

// =============================================================================
// LEDGER CONSTRAINT TESTS
// =============================================================================

func TestSQLite_Append_DuplicateIdempotencyKey(t *testing.T) {
	// GIVEN: A record written with key "k-1"
	// WHEN: Another insert carries the same key
	// THEN: The unique column rejects it at the database

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, settledCredit("r1", "prov-1", 100, "k-1")))

	err := store.Append(ctx, settledCredit("r2", "prov-1", 100, "k-1"))
	assert.True(t, errors.Is(err, ledger.ErrDuplicateIdempotencyKey))

	exists, err := store.Exists(ctx, "k-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLite_Append_EmptyKeysDoNotCollide(t *testing.T) {
	// Records without idempotency keys are stored as NULL, which the
	// unique column permits any number of times.

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, settledCredit("r1", "prov-1", 100, "")))
	require.NoError(t, store.Append(ctx, settledCredit("r2", "prov-1", 200, "")))

	recs, err := store.Load(ctx, "prov-1", ledger.KindEarnings)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSQLite_Load_RoundTripsAmounts(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Append(ctx, settledCredit("r1", "prov-1", 12345, "")))

	recs, err := store.Load(ctx, "prov-1", ledger.KindEarnings)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Amount.Equal(ledger.NewAmount(12345)))
	assert.Equal(t, ledger.Credit, recs[0].Direction)
}

// =============================================================================
// SLOT CONSTRAINT TESTS
// =============================================================================

func TestSQLite_CreateSlot_UniquePerProviderDayRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	slot := availability.Slot{
		ProviderID: "prov-1",
		Date:       slotAt.Truncate(24 * time.Hour),
		TimeRange:  "15:00-16:00",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.CreateSlot(ctx, slot))

	err := store.CreateSlot(ctx, slot)
	assert.True(t, errors.Is(err, availability.ErrSlotConflict))

	slot.TimeRange = "16:00-17:00"
	assert.NoError(t, store.CreateSlot(ctx, slot))
}

// =============================================================================
// SESSION CONSTRAINT TESTS
// =============================================================================

func TestSQLite_CreateSession_LiveIndexClosesBookingRace(t *testing.T) {
	// GIVEN: A pending session for (prov-1, 15:00)
	// WHEN: A second insert targets the same key
	// THEN: The partial unique index rejects it; a rejected session
	//       releases the key for rebooking

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateSession(ctx, pendingSession("s1", "prov-1", slotAt)))

	err := store.CreateSession(ctx, pendingSession("s2", "prov-1", slotAt))
	require.Error(t, err)
	assert.True(t, errors.Is(err, scheduling.ErrSlotAlreadyBooked))

	require.NoError(t, store.DecideSession(ctx, "s1", scheduling.StatusRejected, time.Now().UTC()))
	assert.NoError(t, store.CreateSession(ctx, pendingSession("s3", "prov-1", slotAt)))
}

func TestSQLite_DecideSession_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateSession(ctx, pendingSession("s1", "prov-1", slotAt)))
	require.NoError(t, store.DecideSession(ctx, "s1", scheduling.StatusAccepted, time.Now().UTC()))

	// A second decision finds the session no longer pending.
	err := store.DecideSession(ctx, "s1", scheduling.StatusRejected, time.Now().UTC())
	assert.True(t, errors.Is(err, scheduling.ErrInvalidTransition))

	err = store.DecideSession(ctx, "missing", scheduling.StatusAccepted, time.Now().UTC())
	assert.True(t, errors.Is(err, scheduling.ErrSessionNotFound))

	sess, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, scheduling.StatusAccepted, sess.Status)
	assert.NotNil(t, sess.DecidedAt)
}

// =============================================================================
// PAYOUT CONSTRAINT TESTS
// =============================================================================

func TestSQLite_CreatePayout_SingleOutstandingPerHolder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreatePayout(ctx, requestedPayout("p1", "prov-1", 1000)))

	err := store.CreatePayout(ctx, requestedPayout("p2", "prov-1", 600))
	assert.True(t, errors.Is(err, payout.ErrRequestAlreadyPending))

	// Other holders are unaffected.
	assert.NoError(t, store.CreatePayout(ctx, requestedPayout("p3", "prov-2", 600)))
}

func TestSQLite_SettlePayout_AtomicPaidPlusDebit(t *testing.T) {
	// GIVEN: A REQUESTED payout of 1000
	// WHEN: SettlePayout records the PAID transition and the debit
	// THEN: Both land together; the requested slot is free again

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreatePayout(ctx, requestedPayout("p1", "prov-1", 1000)))

	processedAt := time.Now().UTC()
	debit := ledger.Record{
		ID:             "d1",
		HolderID:       "prov-1",
		Kind:           ledger.KindEarnings,
		Amount:         ledger.NewAmount(1000),
		Direction:      ledger.Debit,
		Status:         ledger.StatusSettled,
		ReferenceID:    "p1",
		Reason:         "payout",
		IdempotencyKey: "payout-p1",
		CreatedAt:      processedAt,
	}
	require.NoError(t, store.SettlePayout(ctx, "p1", payout.StatusRequested, "tx_1", processedAt, debit))

	p, err := store.GetPayout(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, payout.StatusPaid, p.Status)
	assert.Equal(t, "tx_1", p.ExternalRef)
	require.NotNil(t, p.ProcessedAt)

	recs, err := store.Load(ctx, "prov-1", ledger.KindEarnings)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "p1", recs[0].ReferenceID)

	assert.NoError(t, store.CreatePayout(ctx, requestedPayout("p2", "prov-1", 500)))
}

func TestSQLite_SettlePayout_WrongState_NothingWritten(t *testing.T) {
	// GIVEN: A payout already PAID
	// WHEN: SettlePayout runs again
	// THEN: The transaction rolls back - no second debit appears

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreatePayout(ctx, requestedPayout("p1", "prov-1", 1000)))

	processedAt := time.Now().UTC()
	debit := ledger.Record{
		ID: "d1", HolderID: "prov-1", Kind: ledger.KindEarnings,
		Amount: ledger.NewAmount(1000), Direction: ledger.Debit,
		Status: ledger.StatusSettled, IdempotencyKey: "payout-p1", CreatedAt: processedAt,
	}
	require.NoError(t, store.SettlePayout(ctx, "p1", payout.StatusRequested, "tx_1", processedAt, debit))

	debit.ID = "d2"
	debit.IdempotencyKey = "payout-p1-retry"
	err := store.SettlePayout(ctx, "p1", payout.StatusRequested, "tx_2", processedAt, debit)
	assert.True(t, errors.Is(err, payout.ErrInvalidState))

	recs, err := store.Load(ctx, "prov-1", ledger.KindEarnings)
	require.NoError(t, err)
	assert.Len(t, recs, 1)

	p, err := store.GetPayout(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "tx_1", p.ExternalRef)
}

func TestSQLite_SettlePayout_WrongState_ErrorIdentity(t *testing.T) {
	// The wrong-state status read runs while the settle transaction is
	// still open. Both the in-memory and file-backed stores must surface
	// ErrInvalidState there, not a driver error from a second connection.

	opens := map[string]func(t *testing.T) *sqlite.Store{
		"memory": newTestStore,
		"file": func(t *testing.T) *sqlite.Store {
			store, err := sqlite.New(filepath.Join(t.TempDir(), "solace.db"))
			require.NoError(t, err)
			t.Cleanup(func() { store.Close() })
			return store
		},
	}

	for name, open := range opens {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			require.NoError(t, store.CreatePayout(ctx, requestedPayout("p1", "prov-1", 1000)))

			debit := ledger.Record{
				ID: "d1", HolderID: "prov-1", Kind: ledger.KindEarnings,
				Amount: ledger.NewAmount(1000), Direction: ledger.Debit,
				Status: ledger.StatusSettled, CreatedAt: time.Now().UTC(),
			}
			err := store.SettlePayout(ctx, "p1", payout.StatusApproved, "tx_1", time.Now().UTC(), debit)
			assert.True(t, errors.Is(err, payout.ErrInvalidState))
		})
	}
}

// =============================================================================
// UNIQUE-VIOLATION DISCRIMINATION TESTS
// =============================================================================

func TestSQLite_CreateSession_IDCollisionIsNotABookingConflict(t *testing.T) {
	// Same id, different slot: a primary-key collision must not be
	// reported as a booking race on the live-session index.

	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateSession(ctx, pendingSession("s1", "prov-1", slotAt)))

	err := store.CreateSession(ctx, pendingSession("s1", "prov-2", slotAt.Add(time.Hour)))
	require.Error(t, err)
	assert.False(t, errors.Is(err, scheduling.ErrSlotAlreadyBooked))
}

func TestSQLite_CreatePayout_IDCollisionIsNotAPendingRequest(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreatePayout(ctx, requestedPayout("p1", "prov-1", 1000)))

	err := store.CreatePayout(ctx, requestedPayout("p1", "prov-2", 600))
	require.Error(t, err)
	assert.False(t, errors.Is(err, payout.ErrRequestAlreadyPending))
}

// =============================================================================
// PROVIDER DIRECTORY TESTS
// =============================================================================

func TestSQLite_ProviderRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created := identity.Provider{
		ID:                "prov-1",
		DisplayName:       "Provider One",
		Status:            identity.ProviderPending,
		PayoutDestination: "dest-1",
		CreatedAt:         time.Now().UTC(),
	}
	require.NoError(t, store.SaveProvider(ctx, created))

	require.NoError(t, store.SetProviderStatus(ctx, "prov-1", identity.ProviderApproved))

	p, err := store.Provider(ctx, "prov-1")
	require.NoError(t, err)
	assert.Equal(t, identity.ProviderApproved, p.Status)
	assert.Equal(t, "dest-1", p.PayoutDestination)

	_, err = store.Provider(ctx, "ghost")
	assert.True(t, errors.Is(err, identity.ErrProviderNotFound))

	err = store.SetProviderStatus(ctx, "ghost", identity.ProviderApproved)
	assert.True(t, errors.Is(err, identity.ErrProviderNotFound))
}
