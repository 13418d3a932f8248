/*
Package memory provides an in-memory implementation of every store
interface in the system (for testing/dev).

PURPOSE:
  One mutex-guarded struct backing the ledger, availability registry,
  session scheduler, payout workflow, and provider directory. The same
  constraints the SQLite store enforces with unique indexes are enforced
  here with check-then-insert under the lock:

  - ledger: idempotency key uniqueness
  - slots: (provider, date, timeRange) uniqueness
  - sessions: at most one live (PENDING/ACCEPTED) session per
    (provider, scheduledAt)
  - payouts: at most one REQUESTED payout per holder

  A single coarse lock trades throughput for obvious correctness, which
  is the right trade for a test double.

SEE ALSO:
  - store/sqlite: Production implementation of the same interfaces
*/
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/solace/session-engine/availability"
	"github.com/solace/session-engine/identity"
	"github.com/solace/session-engine/ledger"
	"github.com/solace/session-engine/payout"
	"github.com/solace/session-engine/scheduling"
)

type Memory struct {
	mu sync.RWMutex

	records     []ledger.Record
	idempotency map[string]bool
	slots       []availability.Slot
	sessions    map[string]*scheduling.SessionRequest
	payouts     map[string]*payout.PayoutRequest
	providers   map[string]*identity.Provider
}

func New() *Memory {
	return &Memory{
		idempotency: make(map[string]bool),
		sessions:    make(map[string]*scheduling.SessionRequest),
		payouts:     make(map[string]*payout.PayoutRequest),
		providers:   make(map[string]*identity.Provider),
	}
}

// =============================================================================
// LEDGER STORE (ledger.Store interface)
// =============================================================================

// Append adds a single record. Append-only.
func (m *Memory) Append(_ context.Context, rec ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(rec)
}

func (m *Memory) appendLocked(rec ledger.Record) error {
	if rec.IdempotencyKey != "" {
		if m.idempotency[rec.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		m.idempotency[rec.IdempotencyKey] = true
	}

	// Insert in CreatedAt order so Load stays chronological.
	i := sort.Search(len(m.records), func(i int) bool {
		return m.records[i].CreatedAt.After(rec.CreatedAt)
	})
	m.records = append(m.records, ledger.Record{})
	copy(m.records[i+1:], m.records[i:])
	m.records[i] = rec
	return nil
}

func (m *Memory) Load(_ context.Context, holderID ledger.HolderID, kind ledger.HolderKind) ([]ledger.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Record
	for _, rec := range m.records {
		if rec.HolderID == holderID && rec.Kind == kind {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// SLOT STORE (availability.Store interface)
// =============================================================================

func (m *Memory) CreateSlot(_ context.Context, slot availability.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.slots {
		if existing.ProviderID == slot.ProviderID &&
			existing.Date.Equal(slot.Date) &&
			existing.TimeRange == slot.TimeRange {
			return availability.ErrSlotConflict
		}
	}
	m.slots = append(m.slots, slot)
	return nil
}

func (m *Memory) ListSlots(_ context.Context, providerID string) ([]availability.Slot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []availability.Slot
	for _, slot := range m.slots {
		if slot.ProviderID == providerID {
			result = append(result, slot)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].TimeRange < result[j].TimeRange
	})
	return result, nil
}

// =============================================================================
// SESSION STORE (scheduling.Store interface)
// =============================================================================

// CreateSession inserts a session after checking, under the same lock,
// that no live session holds (ProviderID, ScheduledAt).
func (m *Memory) CreateSession(_ context.Context, s scheduling.SessionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.sessions {
		if existing.ProviderID == s.ProviderID &&
			existing.ScheduledAt.Equal(s.ScheduledAt) &&
			existing.Status.Live() {
			return &scheduling.SlotAlreadyBookedError{ProviderID: s.ProviderID, ScheduledAt: s.ScheduledAt}
		}
	}

	copied := s
	m.sessions[s.ID] = &copied
	return nil
}

func (m *Memory) GetSession(_ context.Context, id string) (*scheduling.SessionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, scheduling.ErrSessionNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *Memory) ListSessions(_ context.Context, providerID string, statuses ...scheduling.SessionStatus) ([]scheduling.SessionRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []scheduling.SessionRequest
	for _, s := range m.sessions {
		if s.ProviderID != providerID {
			continue
		}
		if len(statuses) > 0 && !sessionStatusIn(s.Status, statuses) {
			continue
		}
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledAt.Before(result[j].ScheduledAt)
	})
	return result, nil
}

// DecideSession flips a PENDING session to the given status,
// compare-and-set under the lock.
func (m *Memory) DecideSession(_ context.Context, id string, to scheduling.SessionStatus, decidedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return scheduling.ErrSessionNotFound
	}
	if s.Status != scheduling.StatusPending {
		return &scheduling.InvalidTransitionError{SessionID: id, Current: s.Status, Attempted: to}
	}
	s.Status = to
	s.DecidedAt = &decidedAt
	return nil
}

func sessionStatusIn(s scheduling.SessionStatus, set []scheduling.SessionStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// =============================================================================
// PAYOUT STORE (payout.Store interface)
// =============================================================================

// CreatePayout inserts a payout after checking, under the same lock,
// that the holder has no outstanding REQUESTED payout.
func (m *Memory) CreatePayout(_ context.Context, p payout.PayoutRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.payouts {
		if existing.HolderID == p.HolderID && existing.Status == payout.StatusRequested {
			return payout.ErrRequestAlreadyPending
		}
	}

	copied := p
	m.payouts[p.ID] = &copied
	return nil
}

func (m *Memory) GetPayout(_ context.Context, id string) (*payout.PayoutRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.payouts[id]
	if !ok {
		return nil, payout.ErrPayoutNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *Memory) ListPayouts(_ context.Context, holderID ledger.HolderID, statuses ...payout.Status) ([]payout.PayoutRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []payout.PayoutRequest
	for _, p := range m.payouts {
		if p.HolderID != holderID {
			continue
		}
		if len(statuses) > 0 && !payoutStatusIn(p.Status, statuses) {
			continue
		}
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.Before(result[j].RequestedAt)
	})
	return result, nil
}

func (m *Memory) MarkApproved(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[id]
	if !ok {
		return payout.ErrPayoutNotFound
	}
	if p.Status != payout.StatusRequested {
		return &payout.InvalidStateError{PayoutID: id, Current: p.Status, Expected: payout.StatusRequested}
	}
	p.Status = payout.StatusApproved
	return nil
}

// SettlePayout flips the payout to PAID and appends the earnings debit
// under one lock acquisition; both land or neither does.
func (m *Memory) SettlePayout(_ context.Context, id string, from payout.Status, externalRef string, processedAt time.Time, debit ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[id]
	if !ok {
		return payout.ErrPayoutNotFound
	}
	if p.Status != from {
		return &payout.InvalidStateError{PayoutID: id, Current: p.Status, Expected: from}
	}

	if err := m.appendLocked(debit); err != nil {
		return err
	}

	p.Status = payout.StatusPaid
	p.ExternalRef = externalRef
	p.ProcessedAt = &processedAt
	return nil
}

func payoutStatusIn(s payout.Status, set []payout.Status) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// =============================================================================
// PROVIDER DIRECTORY (identity.ProviderDirectory interface)
// =============================================================================

func (m *Memory) SaveProvider(_ context.Context, p identity.Provider) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := p
	m.providers[p.ID] = &copied
	return nil
}

func (m *Memory) Provider(_ context.Context, id string) (*identity.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.providers[id]
	if !ok {
		return nil, identity.ErrProviderNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *Memory) ListProviders(_ context.Context) ([]identity.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []identity.Provider
	for _, p := range m.providers {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SetProviderStatus updates a provider's approval status.
func (m *Memory) SetProviderStatus(_ context.Context, id string, status identity.ProviderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.providers[id]
	if !ok {
		return identity.ErrProviderNotFound
	}
	p.Status = status
	return nil
}
