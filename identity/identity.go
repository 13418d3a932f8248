/*
Package identity defines the boundary types handed to the core by the
identity collaborator.

PURPOSE:
  Credential issuance and verification happen outside this system. Every
  core operation receives an already-authenticated Actor: a verified id
  plus an explicit role. The core never inspects tokens or re-derives a
  role from a payload; the role travels end-to-end as a tagged value.

PROVIDERS:
  Providers are the one identity the core must know more about than an
  id: the scheduler needs the approval status for eligibility checks, and
  the payout workflow needs the payout destination. The Provider record
  carries exactly that and nothing else - display data, certificates,
  and training progress live with the identity collaborator.

SEE ALSO:
  - scheduling: Uses ProviderDirectory for eligibility
  - payout: Uses ProviderDirectory for the transfer destination
*/
package identity

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// ACTOR - Verified caller identity
// =============================================================================

type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
	RoleAdmin     Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleRequester || r == RoleProvider || r == RoleAdmin
}

// Actor is an authenticated caller. Constructed at the transport boundary
// from the identity collaborator's output, never inside the core.
type Actor struct {
	ID   string
	Role Role
}

// =============================================================================
// PROVIDER - The helper side of a match
// =============================================================================

type ProviderStatus string

const (
	ProviderPending   ProviderStatus = "pending"
	ProviderApproved  ProviderStatus = "approved"
	ProviderSuspended ProviderStatus = "suspended"
)

type Provider struct {
	ID          string
	DisplayName string
	Status      ProviderStatus

	// PayoutDestination is the opaque destination handed to the transfer
	// collaborator. Its format belongs to that collaborator.
	PayoutDestination string

	CreatedAt time.Time
}

// Eligible reports whether the provider may receive new session requests.
func (p *Provider) Eligible() bool {
	return p != nil && p.Status == ProviderApproved
}

// ErrProviderNotFound is returned by directories for unknown provider ids.
var ErrProviderNotFound = errors.New("provider not found")

// ProviderDirectory is the read side of the provider registry.
type ProviderDirectory interface {
	// Provider returns the provider record, or ErrProviderNotFound.
	Provider(ctx context.Context, id string) (*Provider, error)
}

// ProviderRegistry is the full registry surface used by the admin API.
type ProviderRegistry interface {
	ProviderDirectory

	SaveProvider(ctx context.Context, p Provider) error
	ListProviders(ctx context.Context) ([]Provider, error)
	SetProviderStatus(ctx context.Context, id string, status ProviderStatus) error
}
