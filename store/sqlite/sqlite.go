/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements all persistence interfaces (ledger.Store, availability.Store,
  scheduling.Store, payout.Store, identity.ProviderDirectory) using
  SQLite. In production the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The ledger side has no UPDATE or DELETE statements. Corrections are
  made by appending offsetting records only.

CONSTRAINT-ENFORCED CORRECTNESS:
  The correctness-critical races are closed by unique indexes that make
  check-then-insert atomic at the store:

  - idx_slots_unique:      one slot per (provider, date, timeRange)
  - idx_sessions_live:     one live (pending/accepted) session per
                           (provider, scheduledAt) - the booking race
  - idx_payouts_requested: one REQUESTED payout per holder - the
                           payout race

  Constraint violations are translated back into the domain errors the
  caller expects (ErrSlotConflict, ErrSlotAlreadyBooked,
  ErrRequestAlreadyPending, ErrDuplicateIdempotencyKey).

STATE TRANSITIONS:
  Session and payout transitions are compare-and-set UPDATEs guarded by
  the expected current status; zero rows affected means a lost race or
  an out-of-order call and maps to the domain's transition error.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool with versioned migrations.

USAGE:
  store, err := sqlite.New("./data/solace.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/solace/session-engine/availability"
	"github.com/solace/session-engine/identity"
	"github.com/solace/session-engine/ledger"
	"github.com/solace/session-engine/payout"
	"github.com/solace/session-engine/scheduling"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A plain :memory: DSN gives every pooled connection its own private
	// empty database; pin the pool to one connection so all callers see
	// the same schema and data.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger records (append-only)
	CREATE TABLE IF NOT EXISTS ledger_records (
		id TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		holder_kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		direction TEXT NOT NULL,
		status TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	-- Hot path: derived balance queries
	CREATE INDEX IF NOT EXISTS idx_ledger_holder_kind
		ON ledger_records(holder_id, holder_kind, created_at);

	-- Providers
	CREATE TABLE IF NOT EXISTS providers (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		status TEXT NOT NULL,
		payout_destination TEXT,
		created_at TEXT NOT NULL
	);

	-- Published slots (immutable)
	CREATE TABLE IF NOT EXISTS slots (
		provider_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time_range TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_slots_unique
		ON slots(provider_id, date, time_range);

	-- Session requests
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		requester_id TEXT NOT NULL,
		provider_id TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		decided_at TEXT
	);

	-- CRITICAL: closes the booking race. At most one live session may
	-- hold a (provider, scheduledAt) key; concurrent inserts lose here.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_sessions_live
		ON sessions(provider_id, scheduled_at)
		WHERE status IN ('pending', 'accepted');

	CREATE INDEX IF NOT EXISTS idx_sessions_provider
		ON sessions(provider_id, scheduled_at);

	-- Payout requests
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		holder_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		status TEXT NOT NULL,
		external_ref TEXT,
		requested_at TEXT NOT NULL,
		processed_at TEXT
	);

	-- CRITICAL: closes the payout race. At most one REQUESTED payout
	-- per holder; concurrent requests lose here.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payouts_requested
		ON payouts(holder_id)
		WHERE status = 'requested';

	CREATE INDEX IF NOT EXISTS idx_payouts_holder
		ON payouts(holder_id, requested_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// Append adds a record to the ledger.
func (s *Store) Append(ctx context.Context, rec ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.appendRecord(ctx, s.db, rec)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) appendRecord(ctx context.Context, db execer, rec ledger.Record) error {
	query := `
		INSERT INTO ledger_records
		(id, holder_id, holder_kind, amount, direction, status, reference_id, reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		rec.ID,
		rec.HolderID,
		rec.Kind,
		rec.Amount.Value.String(),
		rec.Direction,
		rec.Status,
		rec.ReferenceID,
		rec.Reason,
		nullString(rec.IdempotencyKey),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)

	if err != nil {
		if isUniqueViolation(err, "ledger_records.idempotency_key") {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append record: %w", err)
	}

	return nil
}

// Load returns all records for a holder+kind, chronologically.
func (s *Store) Load(ctx context.Context, holderID ledger.HolderID, kind ledger.HolderKind) ([]ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, holder_id, holder_kind, amount, direction, status, reference_id, reason, idempotency_key, created_at
		FROM ledger_records
		WHERE holder_id = ? AND holder_kind = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, holderID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []ledger.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ledger_records WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func scanRecord(rows *sql.Rows) (ledger.Record, error) {
	var (
		rec            ledger.Record
		amount         string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&rec.ID, &rec.HolderID, &rec.Kind, &amount, &rec.Direction,
		&rec.Status, &referenceID, &reason, &idempotencyKey, &createdAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan record: %w", err)
	}

	rec.Amount = ledger.MustParseAmount(amount)
	rec.ReferenceID = referenceID.String
	rec.Reason = reason.String
	rec.IdempotencyKey = idempotencyKey.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

	return rec, nil
}

// =============================================================================
// SLOT STORE (availability.Store interface)
// =============================================================================

// CreateSlot inserts a slot; the unique index enforces
// (provider, date, timeRange) uniqueness.
func (s *Store) CreateSlot(ctx context.Context, slot availability.Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO slots (provider_id, date, time_range, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		slot.ProviderID,
		slot.Date.UTC().Format("2006-01-02"),
		slot.TimeRange,
		slot.CreatedAt.UTC().Format(time.RFC3339Nano),
	)

	if err != nil {
		if isUniqueViolation(err, "slots.provider_id") {
			return availability.ErrSlotConflict
		}
		return fmt.Errorf("failed to create slot: %w", err)
	}

	return nil
}

// ListSlots returns the provider's slots ordered by date ascending.
func (s *Store) ListSlots(ctx context.Context, providerID string) ([]availability.Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT provider_id, date, time_range, created_at
		FROM slots
		WHERE provider_id = ?
		ORDER BY date ASC, time_range ASC
	`

	rows, err := s.db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []availability.Slot
	for rows.Next() {
		var (
			slot      availability.Slot
			date      string
			createdAt string
		)
		if err := rows.Scan(&slot.ProviderID, &date, &slot.TimeRange, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slot.Date, _ = time.Parse("2006-01-02", date)
		slot.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		slots = append(slots, slot)
	}

	return slots, rows.Err()
}

// =============================================================================
// SESSION STORE (scheduling.Store interface)
// =============================================================================

// CreateSession inserts a session; the partial unique index over live
// sessions makes the conflict check and the insert one atomic unit.
func (s *Store) CreateSession(ctx context.Context, sess scheduling.SessionRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sessions (id, requester_id, provider_id, scheduled_at, status, created_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.RequesterID,
		sess.ProviderID,
		sess.ScheduledAt.UTC().Format(time.RFC3339),
		sess.Status,
		sess.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullTime(sess.DecidedAt),
	)

	if err != nil {
		if isUniqueViolation(err, "sessions.provider_id") {
			return &scheduling.SlotAlreadyBookedError{
				ProviderID:  sess.ProviderID,
				ScheduledAt: sess.ScheduledAt,
			}
		}
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// GetSession returns a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*scheduling.SessionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, requester_id, provider_id, scheduled_at, status, created_at, decided_at
		FROM sessions
		WHERE id = ?
	`

	sess, err := scanSession(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, scheduling.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns the provider's sessions ordered by scheduled_at.
func (s *Store) ListSessions(ctx context.Context, providerID string, statuses ...scheduling.SessionStatus) ([]scheduling.SessionRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, requester_id, provider_id, scheduled_at, status, created_at, decided_at
		FROM sessions
		WHERE provider_id = ?
	`
	args := []any{providerID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY scheduled_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []scheduling.SessionRequest
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}

	return sessions, rows.Err()
}

// DecideSession flips a PENDING session to the given status.
// Compare-and-set: the WHERE clause guards the current status, so a
// session decided by a concurrent call surfaces as ErrInvalidTransition.
func (s *Store) DecideSession(ctx context.Context, id string, to scheduling.SessionStatus, decidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ?, decided_at = ? WHERE id = ? AND status = 'pending'`,
		to, decidedAt.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("failed to decide session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current scheduling.SessionStatus
		err := s.db.QueryRowContext(ctx, `SELECT status FROM sessions WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return scheduling.ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		return &scheduling.InvalidTransitionError{SessionID: id, Current: current, Attempted: to}
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*scheduling.SessionRequest, error) {
	var (
		sess        scheduling.SessionRequest
		scheduledAt string
		createdAt   string
		decidedAt   sql.NullString
	)

	err := row.Scan(&sess.ID, &sess.RequesterID, &sess.ProviderID, &scheduledAt, &sess.Status, &createdAt, &decidedAt)
	if err != nil {
		return nil, err
	}

	sess.ScheduledAt, _ = time.Parse(time.RFC3339, scheduledAt)
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if decidedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, decidedAt.String)
		sess.DecidedAt = &t
	}

	return &sess, nil
}

// =============================================================================
// PAYOUT STORE (payout.Store interface)
// =============================================================================

// CreatePayout inserts a payout; the partial unique index over REQUESTED
// rows enforces the single-outstanding-request invariant atomically.
func (s *Store) CreatePayout(ctx context.Context, p payout.PayoutRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payouts (id, holder_id, amount, status, external_ref, requested_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID,
		p.HolderID,
		p.Amount.Value.String(),
		p.Status,
		nullString(p.ExternalRef),
		p.RequestedAt.UTC().Format(time.RFC3339Nano),
		nullTime(p.ProcessedAt),
	)

	if err != nil {
		if isUniqueViolation(err, "payouts.holder_id") {
			return payout.ErrRequestAlreadyPending
		}
		return fmt.Errorf("failed to create payout: %w", err)
	}

	return nil
}

// GetPayout returns a payout by id.
func (s *Store) GetPayout(ctx context.Context, id string) (*payout.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, holder_id, amount, status, external_ref, requested_at, processed_at
		FROM payouts
		WHERE id = ?
	`

	p, err := scanPayout(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, payout.ErrPayoutNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

// ListPayouts returns the holder's payouts ordered by requested_at.
func (s *Store) ListPayouts(ctx context.Context, holderID ledger.HolderID, statuses ...payout.Status) ([]payout.PayoutRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, holder_id, amount, status, external_ref, requested_at, processed_at
		FROM payouts
		WHERE holder_id = ?
	`
	args := []any{holderID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, st := range statuses {
			placeholders[i] = "?"
			args = append(args, st)
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY requested_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var payouts []payout.PayoutRequest
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, *p)
	}

	return payouts, rows.Err()
}

// MarkApproved flips REQUESTED -> APPROVED, compare-and-set.
func (s *Store) MarkApproved(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		`UPDATE payouts SET status = 'approved' WHERE id = ? AND status = 'requested'`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to approve payout: %w", err)
	}

	return checkPayoutTransition(ctx, s.db, result, id, payout.StatusRequested)
}

// SettlePayout transitions the payout to PAID and appends the earnings
// debit within one database transaction. Either both writes commit or
// neither does.
func (s *Store) SettlePayout(ctx context.Context, id string, from payout.Status, externalRef string, processedAt time.Time, debit ledger.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	result, err := sqlTx.ExecContext(ctx,
		`UPDATE payouts SET status = 'paid', external_ref = ?, processed_at = ? WHERE id = ? AND status = ?`,
		externalRef, processedAt.UTC().Format(time.RFC3339Nano), id, from,
	)
	if err != nil {
		return fmt.Errorf("failed to settle payout: %w", err)
	}
	if err := checkPayoutTransition(ctx, sqlTx, result, id, from); err != nil {
		return err
	}

	if err := s.appendRecord(ctx, sqlTx, debit); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkPayoutTransition reads the current status through the same db
// handle that ran the UPDATE, so a caller inside a transaction sees its
// own view instead of grabbing a second pooled connection.
func checkPayoutTransition(ctx context.Context, db querier, result sql.Result, id string, expected payout.Status) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current payout.Status
		err := db.QueryRowContext(ctx, `SELECT status FROM payouts WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return payout.ErrPayoutNotFound
		}
		if err != nil {
			return err
		}
		return &payout.InvalidStateError{PayoutID: id, Current: current, Expected: expected}
	}
	return nil
}

func scanPayout(row rowScanner) (*payout.PayoutRequest, error) {
	var (
		p           payout.PayoutRequest
		amount      string
		externalRef sql.NullString
		requestedAt string
		processedAt sql.NullString
	)

	err := row.Scan(&p.ID, &p.HolderID, &amount, &p.Status, &externalRef, &requestedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	p.Amount = ledger.MustParseAmount(amount)
	p.ExternalRef = externalRef.String
	p.RequestedAt, _ = time.Parse(time.RFC3339Nano, requestedAt)
	if processedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, processedAt.String)
		p.ProcessedAt = &t
	}

	return &p, nil
}

// =============================================================================
// PROVIDER DIRECTORY (identity.ProviderDirectory interface)
// =============================================================================

// SaveProvider inserts or replaces a provider record.
func (s *Store) SaveProvider(ctx context.Context, p identity.Provider) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT OR REPLACE INTO providers (id, display_name, status, payout_destination, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.DisplayName, p.Status, p.PayoutDestination,
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to save provider: %w", err)
	}
	return nil
}

// Provider returns a provider record by id.
func (s *Store) Provider(ctx context.Context, id string) (*identity.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, display_name, status, payout_destination, created_at
		FROM providers
		WHERE id = ?
	`

	var (
		p           identity.Provider
		destination sql.NullString
		createdAt   string
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.DisplayName, &p.Status, &destination, &createdAt)
	if err == sql.ErrNoRows {
		return nil, identity.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	p.PayoutDestination = destination.String
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return &p, nil
}

// ListProviders returns all provider records.
func (s *Store) ListProviders(ctx context.Context) ([]identity.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, display_name, status, payout_destination, created_at FROM providers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query providers: %w", err)
	}
	defer rows.Close()

	var providers []identity.Provider
	for rows.Next() {
		var (
			p           identity.Provider
			destination sql.NullString
			createdAt   string
		)
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Status, &destination, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		p.PayoutDestination = destination.String
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		providers = append(providers, p)
	}

	return providers, rows.Err()
}

// SetProviderStatus updates a provider's approval status.
func (s *Store) SetProviderStatus(ctx context.Context, id string, status identity.ProviderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, `UPDATE providers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to set provider status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return identity.ErrProviderNotFound
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

// isUniqueViolation reports whether err is a unique-constraint failure
// involving the named column. go-sqlite3 formats these as
// "UNIQUE constraint failed: <table>.<col>[, ...]", so matching on a
// column keeps an id primary-key collision from being mistaken for a
// domain-level conflict on the same table.
func isUniqueViolation(err error, column string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}
