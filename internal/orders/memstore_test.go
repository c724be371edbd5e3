package orders

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// In-memory Store with the same transactional semantics as the pgx repo:
// all-or-nothing reservation, initiate inside the critical section, rollback
// on its failure, release-once on update.
type memProduct struct {
	price decimal.Decimal
	stock int
}

type memStore struct {
	mu       sync.Mutex
	products map[string]*memProduct
	orders   map[string]*Order
	nextLine int64
}

func newMemStore() *memStore {
	return &memStore{
		products: map[string]*memProduct{},
		orders:   map[string]*Order{},
	}
}

func (m *memStore) addProduct(id, price string, stock int) {
	m.products[id] = &memProduct{price: decimal.RequireFromString(price), stock: stock}
}

func (m *memStore) setPrice(id, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id].price = decimal.RequireFromString(price)
}

func (m *memStore) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].stock
}

func (m *memStore) backdate(orderID string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[orderID].CreatedAt = m.orders[orderID].CreatedAt.Add(-d)
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Lines = append([]OrderLine(nil), o.Lines...)
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.EscrowReleaseAt != nil {
		t := *o.EscrowReleaseAt
		cp.EscrowReleaseAt = &t
	}
	return &cp
}

func (m *memStore) CreateOrderTx(ctx context.Context, d Draft, initiate InitiateFunc) (*Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.ExternalID != "" {
		for _, o := range m.orders {
			if o.ExternalID == d.ExternalID {
				return cloneOrder(o), true, nil
			}
		}
	}

	total := decimal.Zero
	lines := make([]OrderLine, 0, len(d.Items))
	dec := map[string]int{}
	var shortages []StockShortage
	for _, it := range d.Items {
		p, ok := m.products[it.ProductID]
		if !ok {
			return nil, false, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if p.stock < it.Qty {
			shortages = append(shortages, StockShortage{
				ProductID: it.ProductID, Required: it.Qty, Available: p.stock,
			})
			continue
		}
		dec[it.ProductID] += it.Qty
		total = total.Add(p.price.Mul(decimal.NewFromInt(int64(it.Qty))))
		lines = append(lines, OrderLine{ProductID: it.ProductID, Quantity: it.Qty, PriceAtPurchase: p.price})
	}
	if len(shortages) > 0 {
		return nil, false, &InsufficientStockError{Shortages: shortages}
	}
	if total.Sign() <= 0 {
		return nil, false, ErrEmptyOrder
	}

	orderID := uuid.NewString()
	open, err := initiate(ctx, orderID, total)
	if err != nil {
		return nil, false, err // nothing applied
	}

	for pid, q := range dec {
		m.products[pid].stock -= q
	}
	status := StatusPending
	if open.FundsLocked {
		status = StatusProcessing
	}
	now := time.Now().UTC()
	for i := range lines {
		m.nextLine++
		lines[i].ID = m.nextLine
		lines[i].OrderID = orderID
	}
	o := &Order{
		ID:              orderID,
		ExternalID:      d.ExternalID,
		UserID:          d.UserID,
		Status:          status,
		TotalPi:         total,
		PaymentRef:      open.Reference,
		EscrowReleaseAt: open.EscrowRelease,
		ShippingAddress: d.ShippingAddress,
		Lines:           lines,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.orders[orderID] = o
	return cloneOrder(o), false, nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *memStore) UpdateOrderTx(ctx context.Context, id string, fn UpdateFunc) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := cloneOrder(o)
	wasReleased := cp.StockReleased
	release, err := fn(cp)
	if err != nil {
		return nil, err
	}
	if release && !wasReleased {
		for _, ln := range cp.Lines {
			m.products[ln.ProductID].stock += ln.Quantity
		}
		cp.StockReleased = true
	}
	cp.UpdatedAt = time.Now().UTC()
	m.orders[id] = cloneOrder(cp)
	return cp, nil
}

func (m *memStore) ExpiredPending(ctx context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, o := range m.orders {
		if o.Status == StatusPending && o.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) ListProducts(ctx context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Product
	for id, p := range m.products {
		out = append(out, Product{ID: id, Stock: p.stock, PricePi: p.price})
	}
	return out, nil
}

var _ Store = (*memStore)(nil)
