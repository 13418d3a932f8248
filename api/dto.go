/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

AMOUNTS:
  All amounts cross the wire as integer minor currency units. The ledger
  rejects anything else, so the DTOs never carry floats.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Router setup and middleware
*/
package api

// =============================================================================
// PROVIDER TYPES
// =============================================================================

// ProviderDTO represents a provider in API responses.
type ProviderDTO struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	Status            string `json:"status"`
	PayoutDestination string `json:"payout_destination,omitempty"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// CreateProviderRequest is the request to register a provider.
type CreateProviderRequest struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	PayoutDestination string `json:"payout_destination"`
}

// =============================================================================
// AVAILABILITY TYPES
// =============================================================================

// SlotDTO represents a published availability slot.
type SlotDTO struct {
	ProviderID string `json:"provider_id"`
	Date       string `json:"date"`
	TimeRange  string `json:"time_range"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// PublishSlotRequest is the request to publish an availability slot.
type PublishSlotRequest struct {
	Date      string `json:"date"`
	TimeRange string `json:"time_range"`
}

// =============================================================================
// SESSION TYPES
// =============================================================================

// SessionDTO represents a session request.
type SessionDTO struct {
	ID          string `json:"id"`
	RequesterID string `json:"requester_id"`
	ProviderID  string `json:"provider_id"`
	ScheduledAt string `json:"scheduled_at"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at,omitempty"`
	DecidedAt   string `json:"decided_at,omitempty"`
}

// CreateSessionRequest is the request to book a session.
type CreateSessionRequest struct {
	ProviderID  string `json:"provider_id"`
	ScheduledAt string `json:"scheduled_at"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// RecordDTO represents a ledger record.
type RecordDTO struct {
	ID             string `json:"id"`
	HolderID       string `json:"holder_id"`
	Kind           string `json:"kind"`
	Amount         int64  `json:"amount"`
	Direction      string `json:"direction"`
	Status         string `json:"status"`
	ReferenceID    string `json:"reference_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// AppendRecordRequest is the request to append a ledger record.
type AppendRecordRequest struct {
	HolderID       string `json:"holder_id"`
	Kind           string `json:"kind"`
	Amount         int64  `json:"amount"`
	Direction      string `json:"direction"`
	ReferenceID    string `json:"reference_id"`
	Reason         string `json:"reason"`
	IdempotencyKey string `json:"idempotency_key"`
}

// BalanceDTO is a derived balance for one holder/kind pair.
type BalanceDTO struct {
	HolderID string `json:"holder_id"`
	Kind     string `json:"kind"`
	Balance  int64  `json:"balance"`
}

// =============================================================================
// PAYOUT TYPES
// =============================================================================

// PayoutDTO represents a payout request.
type PayoutDTO struct {
	ID          string `json:"id"`
	HolderID    string `json:"holder_id"`
	Amount      int64  `json:"amount"`
	Status      string `json:"status"`
	ExternalRef string `json:"external_ref,omitempty"`
	ProcessedAt string `json:"processed_at,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"`
}

// CreatePayoutRequest is the request to ask for a payout.
type CreatePayoutRequest struct {
	Amount int64 `json:"amount"`
}

// DashboardDTO is the earnings dashboard for one holder.
type DashboardDTO struct {
	HolderID         string `json:"holder_id"`
	TotalEarned      int64  `json:"total_earned"`
	TotalWithdrawn   int64  `json:"total_withdrawn"`
	TotalPending     int64  `json:"total_pending"`
	AvailableBalance int64  `json:"available_balance"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
