// Package sweeper cancels abandoned unpaid orders on a schedule.
package sweeper

import (
	"context"
	"log"
	"time"
)

type OrderCanceler interface {
	CancelExpired(ctx context.Context) (int, error)
}

// Sweeper is stateless; overlapping runs are safe because cancellation is a
// guarded transition — pass kedua tidak menemukan apa-apa.
type Sweeper struct {
	Orders   OrderCanceler
	Interval time.Duration
}

func (s *Sweeper) Run(ctx context.Context) {
	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Orders.CancelExpired(ctx)
			if err != nil {
				log.Printf("sweeper: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweeper: canceled %d expired order(s)", n)
			}
		}
	}
}
