/*
store.go - Persistence interface for ledger records

PURPOSE:
  Defines the interface between the ledger engine and the database.
  The Store maintains append-only semantics: records are inserted and
  read, never updated or deleted.

APPEND-ONLY CONTRACT:
  - Append(): Single record write
  - NO Update() or Delete() methods exist
  Corrections are made by appending offsetting records.

IDEMPOTENCY:
  A record may carry an idempotency key. If the key already exists the
  write is rejected. This protects the session-lifecycle collaborator's
  completion credits (and wallet top-ups) against network retries.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - store/memory: In-memory store for testing/dev

SEE ALSO:
  - ledger.go: Higher-level engine using Store
*/
package ledger

import "context"

// Store handles persistence of ledger records.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete. Ever.
type Store interface {
	// Append persists a record. Returns ErrDuplicateIdempotencyKey if the
	// record's idempotency key already exists. This is the ONLY write.
	Append(ctx context.Context, rec Record) error

	// Load returns all records for a holder+kind, ordered by CreatedAt.
	Load(ctx context.Context, holderID HolderID, kind HolderKind) ([]Record, error)

	// Exists checks whether an idempotency key has been seen.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}
