/*
Package availability provides the per-provider calendar of open slots.

PURPOSE:
  Providers publish the time windows they are willing to be booked for.
  The registry enforces two rules at publication time:
  1. HORIZON: A slot's date must fall within [today, today+horizon]
  2. UNIQUENESS: (provider, date, timeRange) may be published once

CACHING:
  List() may be served from a short-TTL cache. Staleness here is a UX
  concern, not a correctness one: the scheduler re-validates against
  live session data when a booking is attempted, so a stale list can at
  worst show a slot that will be rejected on request. Publish()
  invalidates the provider's cache entry synchronously.

SLOT LIFECYCLE:
  Slots are immutable once created. They are never mutated; a provider
  removing availability is a deletion, not an edit.

SEE ALSO:
  - cache.go: Cache interface and in-memory implementation
  - rediscache.go: Redis-backed cache
  - scheduling: Enforces booking correctness independently of this cache
*/
package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SLOT - A provider-declared open time window
// =============================================================================

// Slot is immutable once created. Uniqueness is (ProviderID, Date, TimeRange).
type Slot struct {
	ProviderID string
	Date       time.Time // Date only; normalized to UTC midnight
	TimeRange  string    // "HH:MM-HH:MM", e.g. "15:00-16:00"
	CreatedAt  time.Time
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrHorizonExceeded is returned when a slot's date falls outside the
	// allowed booking horizon.
	ErrHorizonExceeded = errors.New("slot date outside booking horizon")

	// ErrSlotConflict is returned when (provider, date, timeRange) has
	// already been published.
	ErrSlotConflict = errors.New("slot already published")

	// ErrInvalidTimeRange is returned for malformed time ranges.
	ErrInvalidTimeRange = errors.New("invalid time range")
)

// HorizonExceededError carries the rejected date and the allowed window.
type HorizonExceededError struct {
	Date        time.Time
	WindowStart time.Time
	WindowEnd   time.Time
}

func (e *HorizonExceededError) Error() string {
	return fmt.Sprintf("date %s outside booking horizon [%s, %s]",
		e.Date.Format("2006-01-02"),
		e.WindowStart.Format("2006-01-02"),
		e.WindowEnd.Format("2006-01-02"))
}

func (e *HorizonExceededError) Unwrap() error { return ErrHorizonExceeded }

// =============================================================================
// STORE - Slot persistence
// =============================================================================

type Store interface {
	// CreateSlot inserts a slot. Returns ErrSlotConflict if the
	// (provider, date, timeRange) key already exists.
	CreateSlot(ctx context.Context, slot Slot) error

	// ListSlots returns the provider's slots ordered by date ascending.
	ListSlots(ctx context.Context, providerID string) ([]Slot, error)
}

// =============================================================================
// REGISTRY
// =============================================================================

// DefaultHorizonDays is the publication window: slots may be published up
// to one week ahead, inclusive.
const DefaultHorizonDays = 7

type Registry struct {
	Store       Store
	Cache       Cache
	CacheTTL    time.Duration
	HorizonDays int

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewRegistry(store Store, cache Cache, ttl time.Duration) *Registry {
	return &Registry{
		Store:       store,
		Cache:       cache,
		CacheTTL:    ttl,
		HorizonDays: DefaultHorizonDays,
		Now:         time.Now,
	}
}

// Publish creates a slot for the provider.
// Fails with ErrHorizonExceeded if the date is outside [today, today+horizon],
// and ErrSlotConflict if the same slot already exists. On success the
// provider's cached availability view is invalidated synchronously.
func (r *Registry) Publish(ctx context.Context, providerID string, date time.Time, timeRange string) (*Slot, error) {
	if err := ValidateTimeRange(timeRange); err != nil {
		return nil, err
	}

	day := truncateToDay(date)
	today := truncateToDay(r.now())
	horizonEnd := today.AddDate(0, 0, r.horizonDays())

	if day.Before(today) || day.After(horizonEnd) {
		return nil, &HorizonExceededError{Date: day, WindowStart: today, WindowEnd: horizonEnd}
	}

	slot := Slot{
		ProviderID: providerID,
		Date:       day,
		TimeRange:  timeRange,
		CreatedAt:  r.now().UTC(),
	}

	if err := r.Store.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}

	// Invalidate before returning so the next List sees the new slot.
	if r.Cache != nil {
		_ = r.Cache.Delete(ctx, cacheKey(providerID))
	}

	return &slot, nil
}

// List returns the provider's slots ordered by date ascending, served from
// the cache when a fresh entry exists. Cache failures fall through to the
// store; the cache is never required for correctness.
func (r *Registry) List(ctx context.Context, providerID string) ([]Slot, error) {
	key := cacheKey(providerID)

	if r.Cache != nil {
		if raw, ok, err := r.Cache.Get(ctx, key); err == nil && ok {
			var slots []Slot
			if err := json.Unmarshal(raw, &slots); err == nil {
				return slots, nil
			}
		}
	}

	slots, err := r.Store.ListSlots(ctx, providerID)
	if err != nil {
		return nil, err
	}

	if r.Cache != nil {
		if raw, err := json.Marshal(slots); err == nil {
			_ = r.Cache.Set(ctx, key, raw, r.CacheTTL)
		}
	}

	return slots, nil
}

func (r *Registry) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Registry) horizonDays() int {
	if r.HorizonDays > 0 {
		return r.HorizonDays
	}
	return DefaultHorizonDays
}

func cacheKey(providerID string) string {
	return "availability:" + providerID
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ValidateTimeRange checks the "HH:MM-HH:MM" shape and that the range ends
// after it starts.
func ValidateTimeRange(tr string) error {
	const layout = "15:04"
	if len(tr) != len("15:00-16:00") || tr[5] != '-' {
		return fmt.Errorf("%w: %q (want HH:MM-HH:MM)", ErrInvalidTimeRange, tr)
	}
	start, err := time.Parse(layout, tr[:5])
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeRange, tr)
	}
	end, err := time.Parse(layout, tr[6:])
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimeRange, tr)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: %q ends before it starts", ErrInvalidTimeRange, tr)
	}
	return nil
}
