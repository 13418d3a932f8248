/*
handlers.go - HTTP API handlers for the session engine

PURPOSE:
  Exposes the matching and payout core via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Providers:
    GET    /api/providers                 List providers (admin)
    POST   /api/providers                 Register provider (admin)
    GET    /api/providers/{id}            Get provider
    POST   /api/providers/{id}/approve    Approve provider (admin)
    POST   /api/providers/{id}/suspend    Suspend provider (admin)
    POST   /api/providers/{id}/slots      Publish availability (provider)
    GET    /api/providers/{id}/slots      List availability
    GET    /api/providers/{id}/sessions   List sessions (provider)

  Sessions:
    POST   /api/sessions                  Book a session (requester)
    POST   /api/sessions/{id}/accept      Accept (provider)
    POST   /api/sessions/{id}/reject      Reject (provider)

  Ledger:
    POST   /api/ledger/records            Append a record (admin)
    GET    /api/holders/{id}/balance      Derived balance
    GET    /api/holders/{id}/records      Record history
    GET    /api/holders/{id}/dashboard    Earnings dashboard

  Payouts:
    POST   /api/payouts                   Request payout (provider)
    POST   /api/payouts/{id}/approve      Transfer and mark paid (admin)
    POST   /api/payouts/{id}/mark-approved Approve without paying (admin)
    POST   /api/payouts/{id}/settle       Pay an approved request (admin)

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Registry:  Availability publishing and listing
  - Scheduler: Session booking and decisions
  - Payouts:   Payout workflow
  - Ledger:    Append-only money records
  - Providers: Provider registry

AUTHENTICATION:
  Credential verification lives with the identity collaborator. This
  layer trusts the X-Actor-Id / X-Actor-Role headers it receives and
  only enforces role/ownership rules. In deployment those headers are
  set by the gateway after token verification, never by clients.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status and a
  machine-readable code so callers can tell failure modes apart:
  - 400: Validation errors, invalid input
  - 403: Actor lacks the role or is not the addressed party
  - 404: Resource not found
  - 409: Conflict (booked slot, pending payout, state transitions)
  - 502: Transfer collaborator failure
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/solace/session-engine/availability"
	"github.com/solace/session-engine/identity"
	"github.com/solace/session-engine/ledger"
	"github.com/solace/session-engine/payout"
	"github.com/solace/session-engine/scheduling"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry  *availability.Registry
	Scheduler *scheduling.Scheduler
	Payouts   *payout.Workflow
	Ledger    ledger.Ledger
	Providers identity.ProviderRegistry
}

// NewHandler creates a new handler with the given collaborators.
func NewHandler(
	registry *availability.Registry,
	scheduler *scheduling.Scheduler,
	payouts *payout.Workflow,
	led ledger.Ledger,
	providers identity.ProviderRegistry,
) *Handler {
	return &Handler{
		Registry:  registry,
		Scheduler: scheduler,
		Payouts:   payouts,
		Ledger:    led,
		Providers: providers,
	}
}

// =============================================================================
// ACTOR EXTRACTION
// =============================================================================

type actorKey struct{}

// ActorFromHeaders builds middleware that reads the verified actor from
// the X-Actor-Id / X-Actor-Role headers and stores it on the request
// context. Requests without a valid actor are rejected before any
// handler runs.
func ActorFromHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := identity.Actor{
			ID:   r.Header.Get("X-Actor-Id"),
			Role: identity.Role(r.Header.Get("X-Actor-Role")),
		}
		if actor.ID == "" || !actor.Role.Valid() {
			writeError(w, http.StatusUnauthorized, "Missing or invalid actor identity", "unauthenticated", nil)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(r *http.Request) identity.Actor {
	actor, _ := r.Context().Value(actorKey{}).(identity.Actor)
	return actor
}

// requireRole enforces that the actor holds one of the given roles.
// Returns false after writing a 403 when the check fails.
func requireRole(w http.ResponseWriter, r *http.Request, roles ...identity.Role) (identity.Actor, bool) {
	actor := actorFrom(r)
	for _, role := range roles {
		if actor.Role == role {
			return actor, true
		}
	}
	writeError(w, http.StatusForbidden, "Actor role not permitted for this operation", "forbidden", nil)
	return actor, false
}

// requireHolderAccess scopes ledger reads: admins may address any holder,
// everyone else only their own. Returns false after writing a 403.
func requireHolderAccess(w http.ResponseWriter, r *http.Request, holderID string) bool {
	actor := actorFrom(r)
	if actor.Role == identity.RoleAdmin || actor.ID == holderID {
		return true
	}
	writeError(w, http.StatusForbidden, "Actors may only read their own ledger data", "forbidden", nil)
	return false
}

// =============================================================================
// PROVIDER HANDLERS
// =============================================================================

// ListProviders returns all registered providers.
func (h *Handler) ListProviders(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	providers, err := h.Providers.ListProviders(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list providers", "internal", err)
		return
	}

	dtos := make([]ProviderDTO, len(providers))
	for i, p := range providers {
		dtos[i] = toProviderDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateProvider registers a new provider in pending status.
func (h *Handler) CreateProvider(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	var req CreateProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err)
		return
	}
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required", "bad_request", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	p := identity.Provider{
		ID:                req.ID,
		DisplayName:       req.DisplayName,
		Status:            identity.ProviderPending,
		PayoutDestination: req.PayoutDestination,
		CreatedAt:         time.Now().UTC(),
	}
	if err := h.Providers.SaveProvider(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create provider", "internal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProviderDTO(p))
}

// GetProvider returns a single provider.
func (h *Handler) GetProvider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Providers.Provider(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderDTO(*p))
}

// ApproveProvider marks a provider eligible for bookings.
func (h *Handler) ApproveProvider(w http.ResponseWriter, r *http.Request) {
	h.setProviderStatus(w, r, identity.ProviderApproved)
}

// SuspendProvider removes a provider from the bookable pool.
func (h *Handler) SuspendProvider(w http.ResponseWriter, r *http.Request) {
	h.setProviderStatus(w, r, identity.ProviderSuspended)
}

func (h *Handler) setProviderStatus(w http.ResponseWriter, r *http.Request, status identity.ProviderStatus) {
	if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Providers.SetProviderStatus(r.Context(), id, status); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": string(status)})
}

// =============================================================================
// AVAILABILITY HANDLERS
// =============================================================================

// PublishSlot publishes an availability slot for the addressed provider.
func (h *Handler) PublishSlot(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, identity.RoleProvider)
	if !ok {
		return
	}
	providerID := chi.URLParam(r, "id")
	if actor.ID != providerID {
		writeError(w, http.StatusForbidden, "Providers may only publish their own availability", "forbidden", nil)
		return
	}

	var req PublishSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD", "bad_request", err)
		return
	}

	slot, err := h.Registry.Publish(r.Context(), providerID, date, req.TimeRange)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSlotDTO(*slot))
}

// ListSlots returns a provider's published availability, soonest first.
func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	providerID := chi.URLParam(r, "id")
	slots, err := h.Registry.List(r.Context(), providerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list availability", "internal", err)
		return
	}

	dtos := make([]SlotDTO, len(slots))
	for i, s := range slots {
		dtos[i] = toSlotDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession books a pending session against a provider slot.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, identity.RoleRequester)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err)
		return
	}
	scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "scheduled_at must be RFC3339", "bad_request", err)
		return
	}

	session, err := h.Scheduler.Request(r.Context(), actor.ID, req.ProviderID, scheduledAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(*session))
}

// ListProviderSessions returns the provider's sessions, optionally
// filtered to pending with ?status=pending.
func (h *Handler) ListProviderSessions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, identity.RoleProvider, identity.RoleAdmin)
	if !ok {
		return
	}
	providerID := chi.URLParam(r, "id")
	if actor.Role == identity.RoleProvider && actor.ID != providerID {
		writeError(w, http.StatusForbidden, "Providers may only list their own sessions", "forbidden", nil)
		return
	}

	var (
		sessions []scheduling.SessionRequest
		err      error
	)
	if r.URL.Query().Get("status") == string(scheduling.StatusPending) {
		sessions, err = h.Scheduler.ListPendingFor(r.Context(), providerID)
	} else {
		sessions, err = h.Scheduler.ListForProvider(r.Context(), providerID)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", "internal", err)
		return
	}

	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AcceptSession moves a pending session to accepted.
func (h *Handler) AcceptSession(w http.ResponseWriter, r *http.Request) {
	h.decideSession(w, r, scheduling.StatusAccepted)
}

// RejectSession moves a pending session to rejected.
func (h *Handler) RejectSession(w http.ResponseWriter, r *http.Request) {
	h.decideSession(w, r, scheduling.StatusRejected)
}

func (h *Handler) decideSession(w http.ResponseWriter, r *http.Request, status scheduling.SessionStatus) {
	actor, ok := requireRole(w, r, identity.RoleProvider)
	if !ok {
		return
	}

	sessionID := chi.URLParam(r, "id")
	session, err := h.Scheduler.SetStatus(r.Context(), actor.ID, sessionID, status)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(*session))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// AppendRecord appends a ledger record. This is the write surface the
// out-of-scope collaborators use for wallet top-ups and session charges.
func (h *Handler) AppendRecord(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	var req AppendRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err)
		return
	}

	rec, err := h.Ledger.Append(r.Context(), ledger.Record{
		HolderID:       ledger.HolderID(req.HolderID),
		Kind:           ledger.HolderKind(req.Kind),
		Amount:         ledger.NewAmount(req.Amount),
		Direction:      ledger.Direction(req.Direction),
		ReferenceID:    req.ReferenceID,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecordDTO(*rec))
}

// GetBalance returns the derived balance for a holder/kind pair.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "id")
	if !requireHolderAccess(w, r, holderID) {
		return
	}
	kind := ledger.HolderKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = ledger.KindWallet
	}

	balance, err := h.Ledger.Balance(r.Context(), ledger.HolderID(holderID), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to derive balance", "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		HolderID: holderID,
		Kind:     string(kind),
		Balance:  balance.MinorUnits(),
	})
}

// GetRecords returns a holder's record history, oldest first.
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	holderID := chi.URLParam(r, "id")
	if !requireHolderAccess(w, r, holderID) {
		return
	}
	kind := ledger.HolderKind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = ledger.KindWallet
	}

	records, err := h.Ledger.Records(r.Context(), ledger.HolderID(holderID), kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load records", "internal", err)
		return
	}

	dtos := make([]RecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDashboard returns the earnings dashboard for a holder.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, identity.RoleProvider, identity.RoleAdmin)
	if !ok {
		return
	}
	holderID := chi.URLParam(r, "id")
	if actor.Role == identity.RoleProvider && actor.ID != holderID {
		writeError(w, http.StatusForbidden, "Providers may only view their own dashboard", "forbidden", nil)
		return
	}

	dash, err := h.Payouts.GetDashboard(r.Context(), ledger.HolderID(holderID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build dashboard", "internal", err)
		return
	}
	writeJSON(w, http.StatusOK, DashboardDTO{
		HolderID:         holderID,
		TotalEarned:      dash.TotalEarned.MinorUnits(),
		TotalWithdrawn:   dash.TotalWithdrawn.MinorUnits(),
		TotalPending:     dash.TotalPending.MinorUnits(),
		AvailableBalance: dash.AvailableBalance.MinorUnits(),
	})
}

// =============================================================================
// PAYOUT HANDLERS
// =============================================================================

// CreatePayout submits a payout request for the calling provider.
func (h *Handler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireRole(w, r, identity.RoleProvider)
	if !ok {
		return
	}

	var req CreatePayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "bad_request", err)
		return
	}

	p, err := h.Payouts.Request(r.Context(), ledger.HolderID(actor.ID), ledger.NewAmount(req.Amount))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPayoutDTO(*p))
}

// ApprovePayout transfers a requested payout and marks it paid.
func (h *Handler) ApprovePayout(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	p, err := h.Payouts.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(*p))
}

// MarkPayoutApproved approves a requested payout without paying it.
func (h *Handler) MarkPayoutApproved(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	p, err := h.Payouts.MarkApproved(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(*p))
}

// SettlePayout transfers an approved payout and marks it paid.
func (h *Handler) SettlePayout(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireRole(w, r, identity.RoleAdmin); !ok {
		return
	}

	p, err := h.Payouts.Settle(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutDTO(*p))
}

// =============================================================================
// DTO MAPPING
// =============================================================================

func toProviderDTO(p identity.Provider) ProviderDTO {
	return ProviderDTO{
		ID:                p.ID,
		DisplayName:       p.DisplayName,
		Status:            string(p.Status),
		PayoutDestination: p.PayoutDestination,
		CreatedAt:         p.CreatedAt.Format(time.RFC3339),
	}
}

func toSlotDTO(s availability.Slot) SlotDTO {
	return SlotDTO{
		ProviderID: s.ProviderID,
		Date:       s.Date.Format("2006-01-02"),
		TimeRange:  s.TimeRange,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
	}
}

func toSessionDTO(s scheduling.SessionRequest) SessionDTO {
	dto := SessionDTO{
		ID:          s.ID,
		RequesterID: s.RequesterID,
		ProviderID:  s.ProviderID,
		ScheduledAt: s.ScheduledAt.Format(time.RFC3339),
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
	}
	if s.DecidedAt != nil {
		dto.DecidedAt = s.DecidedAt.Format(time.RFC3339)
	}
	return dto
}

func toRecordDTO(rec ledger.Record) RecordDTO {
	return RecordDTO{
		ID:             string(rec.ID),
		HolderID:       string(rec.HolderID),
		Kind:           string(rec.Kind),
		Amount:         rec.Amount.MinorUnits(),
		Direction:      string(rec.Direction),
		Status:         string(rec.Status),
		ReferenceID:    rec.ReferenceID,
		Reason:         rec.Reason,
		IdempotencyKey: rec.IdempotencyKey,
		CreatedAt:      rec.CreatedAt.Format(time.RFC3339),
	}
}

func toPayoutDTO(p payout.PayoutRequest) PayoutDTO {
	dto := PayoutDTO{
		ID:          p.ID,
		HolderID:    string(p.HolderID),
		Amount:      p.Amount.MinorUnits(),
		Status:      string(p.Status),
		ExternalRef: p.ExternalRef,
		RequestedAt: p.RequestedAt.Format(time.RFC3339),
	}
	if p.ProcessedAt != nil {
		dto.ProcessedAt = p.ProcessedAt.Format(time.RFC3339)
	}
	return dto
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// domainStatus maps every named domain failure to a status and a stable
// machine-readable code. Unknown errors fall through to 500.
var domainStatus = []struct {
	err    error
	status int
	code   string
}{
	{availability.ErrInvalidTimeRange, http.StatusBadRequest, "invalid_time_range"},
	{availability.ErrHorizonExceeded, http.StatusBadRequest, "horizon_exceeded"},
	{availability.ErrSlotConflict, http.StatusConflict, "slot_conflict"},
	{scheduling.ErrProviderUnavailable, http.StatusConflict, "provider_unavailable"},
	{scheduling.ErrSlotAlreadyBooked, http.StatusConflict, "slot_already_booked"},
	{scheduling.ErrForbidden, http.StatusForbidden, "forbidden"},
	{scheduling.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{scheduling.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ledger.ErrInvalidRecord, http.StatusBadRequest, "invalid_record"},
	{ledger.ErrDuplicateIdempotencyKey, http.StatusConflict, "duplicate_idempotency_key"},
	{payout.ErrBelowMinimum, http.StatusBadRequest, "below_minimum"},
	{payout.ErrAboveMaximum, http.StatusBadRequest, "above_maximum"},
	{payout.ErrRequestAlreadyPending, http.StatusConflict, "request_already_pending"},
	{payout.ErrInsufficientBalance, http.StatusConflict, "insufficient_balance"},
	{payout.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{payout.ErrPayoutNotFound, http.StatusNotFound, "payout_not_found"},
	{payout.ErrTransferFailed, http.StatusBadGateway, "transfer_failed"},
	{identity.ErrProviderNotFound, http.StatusNotFound, "provider_not_found"},
}

func writeDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.err.Error(), m.code, err)
			return
		}
	}
	writeError(w, http.StatusInternalServerError, "Internal error", "internal", err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil && err.Error() != message {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
