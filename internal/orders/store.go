package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Draft struct {
	ExternalID      string
	UserID          string
	ShippingAddress string
	Items           []CartItem
}

// PaymentOpen is what the initiate step reports back into the checkout
// transaction.
type PaymentOpen struct {
	Reference     string
	FundsLocked   bool
	EscrowRelease *time.Time
}

// InitiateFunc runs inside the open checkout transaction, after stock has been
// decremented and before anything is committed. Returning an error rolls the
// whole reservation back; stok tidak pernah bocor terhadap payment yang gagal.
type InitiateFunc func(ctx context.Context, orderID string, total decimal.Decimal) (PaymentOpen, error)

// UpdateFunc runs with the order row exclusively locked. Mutations to o are
// persisted when it returns nil. releaseStock asks the store to restore the
// reserved line quantities in the same transaction; the store ignores it when
// the reservation was already released (release-once).
type UpdateFunc func(o *Order) (releaseStock bool, err error)

type Store interface {
	// CreateOrderTx reserves stock, snapshots prices, runs initiate and
	// persists order + lines as one atomic unit. All-or-nothing across lines.
	// existed=true means the external id was seen before and the original
	// order is returned untouched.
	CreateOrderTx(ctx context.Context, d Draft, initiate InitiateFunc) (o *Order, existed bool, err error)
	GetOrder(ctx context.Context, id string) (*Order, error)
	UpdateOrderTx(ctx context.Context, id string, fn UpdateFunc) (*Order, error)
	// ExpiredPending lists PENDING orders created before cutoff.
	ExpiredPending(ctx context.Context, cutoff time.Time) ([]string, error)
	ListProducts(ctx context.Context) ([]Product, error)
}
