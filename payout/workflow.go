/*
Package payout implements the payout request state machine.

PURPOSE:
  A provider asks to withdraw earned funds. The workflow validates the
  request against hard business limits and the holder's derived balance,
  then an admin moves it through to payment:

      REQUESTED --(approve: transfer, debit)--> PAID
      REQUESTED --(mark approved)--> APPROVED --(settle: transfer, debit)--> PAID

  There is no rejection or cancellation path. A holder whose request is
  stuck has no defined way to free their single-outstanding-request
  slot; that gap is deliberate (see DESIGN.md) and awaits a product
  decision rather than an invented one here.

VALIDATION ORDER (each a distinct failure):
  1. amount < MinPayout          -> ErrBelowMinimum
  2. amount > MaxPayout          -> ErrAboveMaximum
  3. holder has a REQUESTED row  -> ErrRequestAlreadyPending
  4. amount > available          -> ErrInsufficientBalance

  "available" treats outstanding amounts as already spent:
      available = earnings balance - sum(REQUESTED + APPROVED amounts)
  PAID payouts need no subtraction; their debit records are already in
  the earnings ledger.

THE PAYOUT RACE:
  Two concurrent Request calls for the same holder must not both
  succeed. The store's single-outstanding constraint (at most one
  REQUESTED row per holder) is the serialization point: both calls may
  pass validation, but only one insert wins, and the loser surfaces as
  ErrRequestAlreadyPending.

PARTIAL FAILURE ON APPROVAL:
  The transfer call and the local state write are not independently
  retryable. If the transfer fails, the payout stays REQUESTED - no
  partial state. If the transfer succeeds but the state write fails, the
  system holds an unmatched external transfer: this is logged as a
  fatal, alertable condition for manual reconciliation. It is never
  silently retried (double-payment risk).

SEE ALSO:
  - ledger: Derived earnings balance, debit record on payment
  - transfer.go: External transfer collaborator
*/
package payout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/solace/session-engine/identity"
	"github.com/solace/session-engine/ledger"
)

// =============================================================================
// PAYOUT REQUEST - The withdrawal entity
// =============================================================================

type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
)

// Outstanding reports whether the status still counts against the
// holder's available balance (its amount has not yet been debited).
func (s Status) Outstanding() bool {
	return s == StatusRequested || s == StatusApproved
}

type PayoutRequest struct {
	ID       string
	HolderID ledger.HolderID
	Amount   ledger.Amount
	Status   Status

	// Set exactly once, at the PAID transition.
	ExternalRef string
	ProcessedAt *time.Time

	RequestedAt time.Time
}

// Dashboard is the holder-facing earnings summary. Every figure is
// derived on demand; nothing here is stored.
type Dashboard struct {
	TotalEarned      ledger.Amount // credit records only
	TotalWithdrawn   ledger.Amount // APPROVED + PAID payout amounts
	TotalPending     ledger.Amount // REQUESTED payout amounts
	AvailableBalance ledger.Amount // earned - withdrawn - pending
}

// =============================================================================
// STORE - Payout persistence with single-outstanding enforcement
// =============================================================================

type Store interface {
	// CreatePayout inserts a REQUESTED payout. Returns
	// ErrRequestAlreadyPending if the holder already has one; the check
	// and the insert are one atomic unit.
	CreatePayout(ctx context.Context, p PayoutRequest) error

	// GetPayout returns a payout by id, or ErrPayoutNotFound.
	GetPayout(ctx context.Context, id string) (*PayoutRequest, error)

	// ListPayouts returns the holder's payouts ordered by RequestedAt,
	// optionally filtered to the given statuses.
	ListPayouts(ctx context.Context, holderID ledger.HolderID, statuses ...Status) ([]PayoutRequest, error)

	// MarkApproved transitions REQUESTED -> APPROVED, compare-and-set
	// style. Returns ErrInvalidState if the payout is not REQUESTED.
	MarkApproved(ctx context.Context, id string) error

	// SettlePayout atomically transitions the payout from `from` to PAID
	// (recording the external reference and processed time) and appends
	// the earnings debit record. Either both writes land or neither does.
	SettlePayout(ctx context.Context, id string, from Status, externalRef string, processedAt time.Time, debit ledger.Record) error
}

// =============================================================================
// WORKFLOW
// =============================================================================

// Default payout limits in minor currency units.
const (
	DefaultMinPayout = 500
	DefaultMaxPayout = 50000
)

type Limits struct {
	Min ledger.Amount
	Max ledger.Amount
}

func DefaultLimits() Limits {
	return Limits{Min: ledger.NewAmount(DefaultMinPayout), Max: ledger.NewAmount(DefaultMaxPayout)}
}

type Workflow struct {
	Store     Store
	Ledger    ledger.Ledger
	Transfer  Transfer
	Directory identity.ProviderDirectory
	Limits    Limits
	Logger    *zap.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewWorkflow(store Store, led ledger.Ledger, transfer Transfer, directory identity.ProviderDirectory, limits Limits, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workflow{
		Store:     store,
		Ledger:    led,
		Transfer:  transfer,
		Directory: directory,
		Limits:    limits,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Request creates a REQUESTED payout for the holder after the four
// ordered validations. See the package comment for the race analysis.
func (w *Workflow) Request(ctx context.Context, holderID ledger.HolderID, amount ledger.Amount) (*PayoutRequest, error) {
	if !amount.IsValidRecordAmount() {
		return nil, &ledger.InvalidAmountError{Amount: amount}
	}
	if amount.LessThan(w.Limits.Min) {
		return nil, fmt.Errorf("%w: %s < %s", ErrBelowMinimum, amount, w.Limits.Min)
	}
	if amount.GreaterThan(w.Limits.Max) {
		return nil, fmt.Errorf("%w: %s > %s", ErrAboveMaximum, amount, w.Limits.Max)
	}

	outstanding, err := w.Store.ListPayouts(ctx, holderID, StatusRequested)
	if err != nil {
		return nil, err
	}
	if len(outstanding) > 0 {
		return nil, fmt.Errorf("%w: payout %s", ErrRequestAlreadyPending, outstanding[0].ID)
	}

	available, err := w.Available(ctx, holderID)
	if err != nil {
		return nil, err
	}
	if available.LessThan(amount) {
		return nil, &InsufficientBalanceError{HolderID: holderID, Available: available, Requested: amount}
	}

	payout := PayoutRequest{
		ID:          uuid.NewString(),
		HolderID:    holderID,
		Amount:      amount,
		Status:      StatusRequested,
		RequestedAt: w.now().UTC(),
	}

	// The store's single-outstanding constraint is the serialization
	// point; a lost race surfaces here as ErrRequestAlreadyPending.
	if err := w.Store.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}

	return &payout, nil
}

// Available computes the holder's spendable earnings: the derived ledger
// balance minus amounts committed to outstanding payout requests.
func (w *Workflow) Available(ctx context.Context, holderID ledger.HolderID) (ledger.Amount, error) {
	balance, err := w.Ledger.Balance(ctx, holderID, ledger.KindEarnings)
	if err != nil {
		return ledger.Amount{}, err
	}

	committed, err := w.Store.ListPayouts(ctx, holderID, StatusRequested, StatusApproved)
	if err != nil {
		return ledger.Amount{}, err
	}
	for _, p := range committed {
		balance = balance.Sub(p.Amount)
	}
	return balance, nil
}

// Approve pays out a REQUESTED payout: calls the transfer collaborator,
// then atomically records the PAID transition and the earnings debit.
// On transfer failure the payout remains REQUESTED.
func (w *Workflow) Approve(ctx context.Context, payoutID string) (*PayoutRequest, error) {
	return w.settle(ctx, payoutID, StatusRequested)
}

// MarkApproved transitions REQUESTED -> APPROVED without moving money,
// for the two-step admin review path. The amount stays committed against
// the holder's available balance.
func (w *Workflow) MarkApproved(ctx context.Context, payoutID string) (*PayoutRequest, error) {
	p, err := w.Store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusRequested {
		return nil, &InvalidStateError{PayoutID: payoutID, Current: p.Status, Expected: StatusRequested}
	}
	if err := w.Store.MarkApproved(ctx, payoutID); err != nil {
		return nil, err
	}
	p.Status = StatusApproved
	return p, nil
}

// Settle pays out an APPROVED payout, completing the two-step path.
func (w *Workflow) Settle(ctx context.Context, payoutID string) (*PayoutRequest, error) {
	return w.settle(ctx, payoutID, StatusApproved)
}

func (w *Workflow) settle(ctx context.Context, payoutID string, from Status) (*PayoutRequest, error) {
	p, err := w.Store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Status != from {
		return nil, &InvalidStateError{PayoutID: payoutID, Current: p.Status, Expected: from}
	}

	provider, err := w.Directory.Provider(ctx, string(p.HolderID))
	if err != nil {
		return nil, fmt.Errorf("payout destination lookup: %w", err)
	}

	externalRef, err := w.Transfer.Send(ctx, provider.PayoutDestination, p.Amount)
	if err != nil {
		// No partial state: the payout keeps its prior status.
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	processedAt := w.now().UTC()
	debit := ledger.Record{
		ID:             ledger.RecordID(uuid.NewString()),
		HolderID:       p.HolderID,
		Kind:           ledger.KindEarnings,
		Amount:         p.Amount,
		Direction:      ledger.Debit,
		Status:         ledger.StatusSettled,
		ReferenceID:    p.ID,
		Reason:         "payout",
		IdempotencyKey: "payout-" + p.ID,
		CreatedAt:      processedAt,
	}

	if err := w.Store.SettlePayout(ctx, p.ID, from, externalRef, processedAt, debit); err != nil {
		// The external transfer succeeded but the local write did not:
		// an unmatched transfer now exists. Manual reconciliation is the
		// only safe path; retrying the transfer risks double payment.
		w.Logger.Error("unmatched external transfer: payout state write failed after successful transfer",
			zap.String("payout_id", p.ID),
			zap.String("holder_id", string(p.HolderID)),
			zap.String("external_ref", externalRef),
			zap.String("amount", p.Amount.String()),
			zap.Bool("alert", true),
			zap.Error(err))
		return nil, fmt.Errorf("payout %s: state write failed after transfer %s: %w", p.ID, externalRef, err)
	}

	p.Status = StatusPaid
	p.ExternalRef = externalRef
	p.ProcessedAt = &processedAt
	return p, nil
}

// GetDashboard returns the holder's earnings summary.
func (w *Workflow) GetDashboard(ctx context.Context, holderID ledger.HolderID) (*Dashboard, error) {
	credits, _, err := w.Ledger.Totals(ctx, holderID, ledger.KindEarnings)
	if err != nil {
		return nil, err
	}

	payouts, err := w.Store.ListPayouts(ctx, holderID)
	if err != nil {
		return nil, err
	}

	withdrawn, pending := ledger.ZeroAmount(), ledger.ZeroAmount()
	for _, p := range payouts {
		switch p.Status {
		case StatusApproved, StatusPaid:
			withdrawn = withdrawn.Add(p.Amount)
		case StatusRequested:
			pending = pending.Add(p.Amount)
		}
	}

	return &Dashboard{
		TotalEarned:      credits,
		TotalWithdrawn:   withdrawn,
		TotalPending:     pending,
		AvailableBalance: credits.Sub(withdrawn).Sub(pending),
	}, nil
}

func (w *Workflow) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}
