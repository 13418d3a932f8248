package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solace/session-engine/ledger"
	"github.com/solace/session-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestLedger() ledger.Ledger {
	return ledger.New(memory.New())
}

func credit(holder string, kind ledger.HolderKind, amount int64) ledger.Record {
	return ledger.Record{
		HolderID:  ledger.HolderID(holder),
		Kind:      kind,
		Amount:    ledger.NewAmount(amount),
		Direction: ledger.Credit,
	}
}

func debit(holder string, kind ledger.HolderKind, amount int64) ledger.Record {
	return ledger.Record{
		HolderID:  ledger.HolderID(holder),
		Kind:      kind,
		Amount:    ledger.NewAmount(amount),
		Direction: ledger.Debit,
	}
}

// =============================================================================
// APPEND VALIDATION TESTS
// =============================================================================

func TestAppend_ZeroAmount_Rejected(t *testing.T) {
	// GIVEN: A record with a zero amount
	// WHEN: Appending it
	// THEN: ErrInvalidAmount, nothing persisted

	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Append(ctx, credit("req-1", ledger.KindWallet, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))

	recs, err := l.Records(ctx, "req-1", ledger.KindWallet)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestAppend_NegativeAmount_Rejected(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Append(ctx, credit("req-1", ledger.KindWallet, -500))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))
}

func TestAppend_FractionalAmount_Rejected(t *testing.T) {
	// GIVEN: An amount of 10.5 minor units
	// WHEN: Appending
	// THEN: ErrInvalidAmount - amounts are whole minor units only

	ctx := context.Background()
	l := newTestLedger()

	rec := credit("req-1", ledger.KindWallet, 0)
	rec.Amount = ledger.Amount{Value: decimal.NewFromFloat(10.5)}

	_, err := l.Append(ctx, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))
}

func TestAppend_UnknownKind_Rejected(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	rec := credit("req-1", ledger.KindWallet, 100)
	rec.Kind = "savings"

	_, err := l.Append(ctx, rec)
	assert.True(t, errors.Is(err, ledger.ErrInvalidRecord))
}

func TestAppend_MissingHolder_Rejected(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Append(ctx, credit("", ledger.KindWallet, 100))
	assert.True(t, errors.Is(err, ledger.ErrInvalidRecord))
}

func TestAppend_FillsDefaults(t *testing.T) {
	// GIVEN: A record without id, status, or timestamp
	// WHEN: Appending
	// THEN: They are filled in; status defaults to settled

	ctx := context.Background()
	l := newTestLedger()

	rec, err := l.Append(ctx, credit("req-1", ledger.KindWallet, 100))
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, ledger.StatusSettled, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
}

// =============================================================================
// IDEMPOTENCY TESTS
// =============================================================================

func TestAppend_DuplicateIdempotencyKey_Rejected(t *testing.T) {
	// GIVEN: A settled credit with idempotency key "topup-42"
	// WHEN: A retry appends the same key
	// THEN: ErrDuplicateIdempotencyKey and the balance is unchanged

	ctx := context.Background()
	l := newTestLedger()

	first := credit("req-1", ledger.KindWallet, 1000)
	first.IdempotencyKey = "topup-42"
	_, err := l.Append(ctx, first)
	require.NoError(t, err)

	retry := credit("req-1", ledger.KindWallet, 1000)
	retry.IdempotencyKey = "topup-42"
	_, err = l.Append(ctx, retry)
	assert.True(t, errors.Is(err, ledger.ErrDuplicateIdempotencyKey))

	balance, err := l.Balance(ctx, "req-1", ledger.KindWallet)
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.NewAmount(1000)))
}

// =============================================================================
// BALANCE DERIVATION TESTS
// =============================================================================

func TestBalance_SumOfSignedRecords(t *testing.T) {
	// GIVEN: Credits of 1000 and 500, a debit of 300
	// WHEN: Deriving the balance
	// THEN: 1200 - the balance is never stored, always recomputed

	ctx := context.Background()
	l := newTestLedger()

	for _, rec := range []ledger.Record{
		credit("req-1", ledger.KindWallet, 1000),
		credit("req-1", ledger.KindWallet, 500),
		debit("req-1", ledger.KindWallet, 300),
	} {
		_, err := l.Append(ctx, rec)
		require.NoError(t, err)
	}

	balance, err := l.Balance(ctx, "req-1", ledger.KindWallet)
	require.NoError(t, err)
	assert.True(t, balance.Equal(ledger.NewAmount(1200)), "got %s", balance)
}

func TestBalance_EmptyHistory_Zero(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	balance, err := l.Balance(ctx, "nobody", ledger.KindEarnings)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestBalance_KindsArePartitioned(t *testing.T) {
	// GIVEN: The same holder id with wallet and earnings records
	// WHEN: Deriving each balance
	// THEN: Kinds never bleed into each other

	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Append(ctx, credit("dual-1", ledger.KindWallet, 700))
	require.NoError(t, err)
	_, err = l.Append(ctx, credit("dual-1", ledger.KindEarnings, 900))
	require.NoError(t, err)

	wallet, err := l.Balance(ctx, "dual-1", ledger.KindWallet)
	require.NoError(t, err)
	earnings, err := l.Balance(ctx, "dual-1", ledger.KindEarnings)
	require.NoError(t, err)

	assert.True(t, wallet.Equal(ledger.NewAmount(700)))
	assert.True(t, earnings.Equal(ledger.NewAmount(900)))
}

func TestBalance_StatusFilter(t *testing.T) {
	// GIVEN: A settled credit and a pending credit
	// WHEN: Deriving the settled-only balance
	// THEN: The pending record is excluded

	ctx := context.Background()
	l := newTestLedger()

	_, err := l.Append(ctx, credit("prov-1", ledger.KindEarnings, 2000))
	require.NoError(t, err)

	pending := credit("prov-1", ledger.KindEarnings, 500)
	pending.Status = ledger.StatusPending
	_, err = l.Append(ctx, pending)
	require.NoError(t, err)

	settled, err := l.Balance(ctx, "prov-1", ledger.KindEarnings, ledger.StatusSettled)
	require.NoError(t, err)
	assert.True(t, settled.Equal(ledger.NewAmount(2000)))

	all, err := l.Balance(ctx, "prov-1", ledger.KindEarnings)
	require.NoError(t, err)
	assert.True(t, all.Equal(ledger.NewAmount(2500)))
}

func TestTotals_SeparatesCreditsAndDebits(t *testing.T) {
	// GIVEN: Earnings credits of 2000 and 1500, a payout debit of 1000
	// WHEN: Computing totals
	// THEN: Credits 3500, debits 1000 - "total earned" never shrinks on payout

	ctx := context.Background()
	l := newTestLedger()

	for _, rec := range []ledger.Record{
		credit("prov-1", ledger.KindEarnings, 2000),
		credit("prov-1", ledger.KindEarnings, 1500),
		debit("prov-1", ledger.KindEarnings, 1000),
	} {
		_, err := l.Append(ctx, rec)
		require.NoError(t, err)
	}

	credits, debits, err := l.Totals(ctx, "prov-1", ledger.KindEarnings)
	require.NoError(t, err)
	assert.True(t, credits.Equal(ledger.NewAmount(3500)))
	assert.True(t, debits.Equal(ledger.NewAmount(1000)))
}

func TestRecords_Chronological(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger()

	for i := int64(1); i <= 3; i++ {
		_, err := l.Append(ctx, credit("req-1", ledger.KindWallet, i*100))
		require.NoError(t, err)
	}

	recs, err := l.Records(ctx, "req-1", ledger.KindWallet)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i := 1; i < len(recs); i++ {
		assert.False(t, recs[i].CreatedAt.Before(recs[i-1].CreatedAt))
	}
}
