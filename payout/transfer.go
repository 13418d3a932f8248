/*
transfer.go - External transfer collaborator boundary

PURPOSE:
  Actually moving money to a provider's bank or wallet is a payment
  gateway concern. The workflow only knows this interface: hand over a
  destination and an amount, get back an external reference id.

CONTRACT:
  - Send is called at most once per approval attempt; the workflow never
    retries it automatically (double-payment risk, see workflow.go).
  - Implementations are expected to impose their own timeouts via ctx.
*/
package payout

import (
	"context"

	"github.com/solace/session-engine/ledger"
)

// Transfer is the external money-movement collaborator.
type Transfer interface {
	// Send moves amount to destination and returns the gateway's
	// reference id for the transfer.
	Send(ctx context.Context, destination string, amount ledger.Amount) (externalRef string, err error)
}

// TransferFunc adapts a function to the Transfer interface.
type TransferFunc func(ctx context.Context, destination string, amount ledger.Amount) (string, error)

func (f TransferFunc) Send(ctx context.Context, destination string, amount ledger.Amount) (string, error) {
	return f(ctx, destination, amount)
}
