// Package payment defines the contract to the external Pi escrow gateway.
// The gateway is an untrusted, possibly-retrying actor: confirmations arrive
// through the inbound callback and may be delivered more than once.
package payment

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusAwaitingLock Status = "AWAITING_FUNDS_LOCK"
	StatusFundsLocked  Status = "FUNDS_LOCKED_IN_ESCROW"
	StatusFailed       Status = "FAILED"
)

var (
	ErrUnavailable   = errors.New("payment gateway unavailable")
	ErrInvalidAmount = errors.New("payment amount must be positive")
	ErrRejected      = errors.New("payment rejected by gateway")
)

// Intent is the gateway's view of one escrow transaction.
type Intent struct {
	Reference string // opaque external id, e.g. "pi_tx_..."
	Status    Status
	LockUntil time.Time // zero unless funds are locked
}

type InitiateRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Payee    string // seller pi address, receives the funds on release
	Metadata map[string]string
}

type Gateway interface {
	// Initiate opens an escrow intent for the given amount.
	Initiate(ctx context.Context, req InitiateRequest) (Intent, error)
	// Verify reads the current state of an intent (synchronous-escrow integrations).
	Verify(ctx context.Context, reference string) (Intent, error)
	// Release pays the locked funds out to the seller.
	Release(ctx context.Context, reference string) error
	// Refund returns the locked funds to the buyer.
	Refund(ctx context.Context, reference string) error
}
