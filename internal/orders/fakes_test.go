package orders

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Yasser1728/tec/internal/payment"
)

type fakeGateway struct {
	mu          sync.Mutex
	lockOnInit  bool // report FUNDS_LOCKED straight from Initiate
	initiateErr error
	releaseErr  error
	refundErr   error
	initiated   int
	released    int
	refunded    int
}

func (g *fakeGateway) Initiate(ctx context.Context, req payment.InitiateRequest) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initiateErr != nil {
		return payment.Intent{}, g.initiateErr
	}
	g.initiated++
	st := payment.StatusAwaitingLock
	if g.lockOnInit {
		st = payment.StatusFundsLocked
	}
	return payment.Intent{Reference: fmt.Sprintf("pi_tx_%d", g.initiated), Status: st}, nil
}

func (g *fakeGateway) Verify(ctx context.Context, reference string) (payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st := payment.StatusAwaitingLock
	if g.lockOnInit {
		st = payment.StatusFundsLocked
	}
	return payment.Intent{Reference: reference, Status: st}, nil
}

func (g *fakeGateway) Release(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.releaseErr != nil {
		return g.releaseErr
	}
	g.released++
	return nil
}

func (g *fakeGateway) Refund(ctx context.Context, reference string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunded++
	return nil
}

type fakeLoyalty struct {
	mu        sync.Mutex
	grants    int
	referrals int
}

func (l *fakeLoyalty) GrantPurchasePoints(ctx context.Context, userID, orderID string, total decimal.Decimal) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.grants++
	return int(total.IntPart()), nil
}

func (l *fakeLoyalty) FinalizeReferralReward(ctx context.Context, refereeID, orderID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.referrals++
	return nil
}

func (l *fakeLoyalty) grantCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.grants
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []string
}

func (n *fakeNotifier) Notify(ctx context.Context, userID, message, kind, relatedID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, kind+":"+message)
	return nil
}
