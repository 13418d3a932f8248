/*
ledger.go - Append-only ledger with derived balances

PURPOSE:
  The Ledger is the immutable source of truth for all money movement.
  Every wallet top-up, session charge, earnings credit, and payout debit
  is recorded here. Balance is always computed by summing records -
  there is no separate "balance" field that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER.
  2. IMMUTABLE: Once written, records cannot be modified
  3. DERIVED: balance == sum(credits) - sum(debits), recomputed per query
  4. IDEMPOTENT: Same idempotency key = same record (no double counting)

WHY DERIVED BALANCES?
  - Audit trail: You can always explain how a balance got to its value
  - Correctness: No drift between a counter and the history behind it
  - Concurrency: Append is a pure insert; there is no read-modify-write
    on a shared counter for concurrent requests to race on

CORRECTIONS:
  If a mistake is made, the record is not edited. An offsetting record
  in the opposite direction is appended; both remain in history.

HOLDERS:
  The engine is instantiated once and partitioned by HolderKind:
  - KindWallet:   requester spendable funds (top-ups credit, charges debit)
  - KindEarnings: provider earnings (completions credit, payouts debit)

SEE ALSO:
  - store.go: Low-level persistence interface
  - payout package: Consumes Balance/Totals for the payout workflow
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// LEDGER - Append-only record log with derived balance queries
// =============================================================================

// Ledger is the source of truth for all balance changes.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete. EVER.
//   - Immutable: Once written, records cannot be modified.
//   - Derived: Balance is recomputed from records on every query.
type Ledger interface {
	// Append validates and persists a record. The only write operation.
	Append(ctx context.Context, rec Record) (*Record, error)

	// Records returns all records for a holder+kind, chronologically.
	Records(ctx context.Context, holderID HolderID, kind HolderKind) ([]Record, error)

	// Balance computes sum(credits) - sum(debits) over matching records,
	// optionally restricted to the given statuses.
	Balance(ctx context.Context, holderID HolderID, kind HolderKind, statuses ...RecordStatus) (Amount, error)

	// Totals returns the credit and debit sums separately.
	// The payout dashboard's "total earned" is the credit sum alone.
	Totals(ctx context.Context, holderID HolderID, kind HolderKind) (credits, debits Amount, err error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func New(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, rec Record) (*Record, error) {
	if !rec.Amount.IsValidRecordAmount() {
		return nil, &InvalidAmountError{Amount: rec.Amount}
	}
	if !rec.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown holder kind %q", ErrInvalidRecord, rec.Kind)
	}
	if !rec.Direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", ErrInvalidRecord, rec.Direction)
	}
	if rec.HolderID == "" {
		return nil, fmt.Errorf("%w: missing holder id", ErrInvalidRecord)
	}

	if rec.ID == "" {
		rec.ID = RecordID(uuid.NewString())
	}
	if rec.Status == "" {
		rec.Status = StatusSettled
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if rec.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, rec.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateIdempotencyKey
		}
	}

	if err := l.Store.Append(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (l *DefaultLedger) Records(ctx context.Context, holderID HolderID, kind HolderKind) ([]Record, error) {
	return l.Store.Load(ctx, holderID, kind)
}

func (l *DefaultLedger) Balance(ctx context.Context, holderID HolderID, kind HolderKind, statuses ...RecordStatus) (Amount, error) {
	recs, err := l.Store.Load(ctx, holderID, kind)
	if err != nil {
		return Amount{}, err
	}

	balance := ZeroAmount()
	for _, rec := range recs {
		if len(statuses) > 0 && !statusIn(rec.Status, statuses) {
			continue
		}
		balance = balance.Add(rec.Signed())
	}
	return balance, nil
}

func (l *DefaultLedger) Totals(ctx context.Context, holderID HolderID, kind HolderKind) (Amount, Amount, error) {
	recs, err := l.Store.Load(ctx, holderID, kind)
	if err != nil {
		return Amount{}, Amount{}, err
	}

	credits, debits := ZeroAmount(), ZeroAmount()
	for _, rec := range recs {
		switch rec.Direction {
		case Credit:
			credits = credits.Add(rec.Amount)
		case Debit:
			debits = debits.Add(rec.Amount)
		}
	}
	return credits, debits, nil
}

func statusIn(s RecordStatus, set []RecordStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
