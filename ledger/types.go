/*
Package ledger provides the append-only money ledger engine.

PURPOSE:
  This package contains holder-agnostic types and algorithms for tracking
  money movement. Whether the holder is a requester's spendable wallet or
  a provider's earnings, the same engine handles record persistence and
  derived-balance calculation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A monetary quantity in minor currency units (cents)
  - Record: An immutable ledger entry recording a credit or debit
  - HolderKind: Which derived balance a record contributes to
  - Direction: Whether a record adds to or subtracts from the balance

DESIGN PRINCIPLES:
  1. Immutability: Records are never modified, only offset by new records
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Derived state: Balance is always computed from history, never stored
  4. Auditability: Every record has a reason, reference, and idempotency key

USAGE:
  amount := ledger.NewAmount(175)
  rec := ledger.Record{
      HolderID:  "prov-123",
      Kind:      ledger.KindEarnings,
      Amount:    amount,
      Direction: ledger.Credit,
  }

SEE ALSO:
  - ledger.go: Balance derivation from records
  - store.go: Persistence interface
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money in minor currency units
// =============================================================================

// Amount is a monetary value expressed in minor currency units (e.g. cents).
// Valid ledger amounts are positive whole numbers; arithmetic results such
// as balances may be zero or negative.
type Amount struct {
	Value decimal.Decimal
}

func NewAmount(minorUnits int64) Amount {
	return Amount{Value: decimal.NewFromInt(minorUnits)}
}

func ZeroAmount() Amount {
	return Amount{Value: decimal.Zero}
}

// MustParseAmount parses a decimal string, returning zero on failure.
// Intended for store scan paths where the value was written by this system.
func MustParseAmount(s string) Amount {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroAmount()
	}
	return Amount{Value: d}
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg()} }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) String() string            { return a.Value.String() }

// MinorUnits returns the amount truncated to whole minor units.
func (a Amount) MinorUnits() int64 { return a.Value.IntPart() }

// IsValidRecordAmount reports whether the amount may appear on a ledger
// record: strictly positive and a whole number of minor units.
func (a Amount) IsValidRecordAmount() bool {
	return a.Value.IsPositive() && a.Value.IsInteger()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RecordID string
type HolderID string

// HolderKind selects which derived balance a record contributes to.
// A requester's spendable wallet and a provider's earnings are two
// partitions of the same ledger, not two bespoke ledgers.
type HolderKind string

const (
	KindWallet   HolderKind = "wallet"
	KindEarnings HolderKind = "earnings"
)

func (k HolderKind) Valid() bool {
	return k == KindWallet || k == KindEarnings
}

// =============================================================================
// RECORD - Atomic change to a derived balance
// =============================================================================

type Direction string

const (
	Credit Direction = "credit" // Adds to the holder's balance
	Debit  Direction = "debit"  // Subtracts from the holder's balance
)

func (d Direction) Valid() bool {
	return d == Credit || d == Debit
}

// RecordStatus distinguishes settled funds from amounts that are still
// in flight. Wallet records are always settled; the earnings ledger uses
// status so the payout workflow can separate the two.
type RecordStatus string

const (
	StatusSettled RecordStatus = "settled"
	StatusPending RecordStatus = "pending"
)

type Record struct {
	ID        RecordID
	HolderID  HolderID
	Kind      HolderKind
	Amount    Amount // Always positive; Direction carries the sign
	Direction Direction
	Status    RecordStatus

	// Audit fields
	ReferenceID    string // e.g. session id, payout id
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// Signed returns the record's contribution to a derived balance:
// positive for credits, negative for debits.
func (r Record) Signed() Amount {
	if r.Direction == Debit {
		return r.Amount.Neg()
	}
	return r.Amount
}
