package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/Yasser1728/tec/internal/payment"
)

// Loyalty is the growth black box: grant points for a confirmed order.
// Implementations must be idempotent per (user, order).
type Loyalty interface {
	GrantPurchasePoints(ctx context.Context, userID, orderID string, total decimal.Decimal) (int, error)
	FinalizeReferralReward(ctx context.Context, refereeID, orderID string) error
}

type Notifier interface {
	Notify(ctx context.Context, userID, message, kind, relatedID string) error
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Settings is injected configuration, dibaca di awal tiap operasi (bukan
// global state).
type Settings struct {
	GatewayTimeout time.Duration   // bound on any outbound gateway call
	EscrowPeriod   time.Duration   // escrow_release_date = lock time + period
	AppFeeRate     decimal.Decimal // application fee, forwarded as intent metadata
	ExpireAfter    time.Duration   // PENDING older than this is swept
}

// Service owns the order lifecycle. Semua transisi status lewat sini, satu per
// satu di bawah row lock; caller lain tidak pernah memutasi baris order.
type Service struct {
	Store    Store
	Gateway  payment.Gateway
	Loyalty  Loyalty
	Notifier Notifier
	Events   Publisher
	Name     string
	Settings Settings
}

type CheckoutInput struct {
	ExternalID      string
	UserID          string
	ShippingAddress string
	SellerAddress   string
	Items           []CartItem
}

// Reported payment status on the inbound callback.
const (
	ReportSuccess = "success"
	ReportFailed  = "failed"
)

type ReconcileInput struct {
	OrderID   string
	Reference string
	Status    string // ReportSuccess or anything else = failure
	Amount    decimal.Decimal
}

// CreateOrder runs the checkout: reserve stock, snapshot prices, open the
// escrow intent, persist. Gateway failure rolls everything back.
func (s *Service) CreateOrder(ctx context.Context, in CheckoutInput) (*Order, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	seen := make(map[string]bool, len(in.Items))
	for _, it := range in.Items {
		if it.Qty <= 0 {
			return nil, fmt.Errorf("%w: product %s", ErrBadQuantity, it.ProductID)
		}
		if seen[it.ProductID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateItem, it.ProductID)
		}
		seen[it.ProductID] = true
	}

	d := Draft{
		ExternalID:      in.ExternalID,
		UserID:          in.UserID,
		ShippingAddress: in.ShippingAddress,
		Items:           in.Items,
	}
	o, existed, err := s.Store.CreateOrderTx(ctx, d, func(ctx context.Context, orderID string, total decimal.Decimal) (PaymentOpen, error) {
		fee := total.Mul(s.Settings.AppFeeRate).Round(9)
		gctx, cancel := context.WithTimeout(ctx, s.Settings.GatewayTimeout)
		defer cancel()

		intent, err := s.Gateway.Initiate(gctx, payment.InitiateRequest{
			OrderID: orderID,
			Amount:  total,
			Payee:   in.SellerAddress,
			Metadata: map[string]string{
				"user_id":    in.UserID,
				"app_fee_pi": fee.String(),
			},
		})
		if err != nil {
			return PaymentOpen{}, err
		}
		if intent.Reference == "" {
			return PaymentOpen{}, payment.ErrRejected
		}
		// Escrow sinkron: satu kali verify untuk tahu dana sudah terkunci.
		// Kalau belum, order tetap PENDING dan menunggu callback.
		if intent.Status != payment.StatusFundsLocked {
			if v, err := s.Gateway.Verify(gctx, intent.Reference); err == nil && v.Status == payment.StatusFundsLocked {
				intent = v
			}
		}
		open := PaymentOpen{Reference: intent.Reference}
		if intent.Status == payment.StatusFundsLocked {
			open.FundsLocked = true
			t := time.Now().UTC().Add(s.Settings.EscrowPeriod)
			open.EscrowRelease = &t
		}
		return open, nil
	})
	if err != nil {
		return nil, err
	}
	if existed {
		return o, nil
	}

	items := make([]LineQty, 0, len(o.Lines))
	for _, ln := range o.Lines {
		items = append(items, LineQty{ProductID: ln.ProductID, Qty: ln.Quantity})
	}
	s.publish(TopicOrderCreated, EventOrderCreated, o.ID, OrderCreatedPayload{
		OrderID: o.ID, UserID: o.UserID, Status: o.Status,
		TotalPi: o.TotalPi.String(), Items: items,
	})
	return o, nil
}

// ConfirmPayment reconciles an asynchronous gateway confirmation. Idempotent:
// callback ulang untuk order yang sudah terminal atau sudah paid adalah no-op.
// Unknown order is also a no-op (nil, nil) — gateways retry, errors feed storms.
func (s *Service) ConfirmPayment(ctx context.Context, in ReconcileInput) (*Order, error) {
	const (
		outNoop = iota
		outConfirmed
		outMismatch
		outFailed
	)
	outcome := outNoop

	o, err := s.Store.UpdateOrderTx(ctx, in.OrderID, func(o *Order) (bool, error) {
		if o.Status.Terminal() || o.Paid() {
			return false, nil
		}
		// Integrity check: jumlah harus sama persis, tanpa toleransi.
		if !in.Amount.Equal(o.TotalPi) {
			outcome = outMismatch
			o.Status = StatusCanceled
			return true, nil
		}
		if !strings.EqualFold(in.Status, ReportSuccess) {
			outcome = outFailed
			o.Status = StatusCanceled
			return true, nil
		}
		now := time.Now().UTC()
		o.PaidAt = &now
		if in.Reference != "" {
			o.PaymentRef = in.Reference
		}
		if o.Status == StatusPending {
			o.Status = StatusProcessing
		}
		if o.EscrowReleaseAt == nil {
			t := now.Add(s.Settings.EscrowPeriod)
			o.EscrowReleaseAt = &t
		}
		outcome = outConfirmed
		return false, nil
	})
	if errors.Is(err, ErrOrderNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	switch outcome {
	case outConfirmed:
		// Downstream notifiers: gagal hanya dilog, tidak membatalkan transisi.
		if s.Loyalty != nil {
			if _, err := s.Loyalty.GrantPurchasePoints(ctx, o.UserID, o.ID, o.TotalPi); err != nil {
				log.Printf("orders: loyalty grant for %s: %v", o.ID, err)
			}
			if err := s.Loyalty.FinalizeReferralReward(ctx, o.UserID, o.ID); err != nil {
				log.Printf("orders: referral reward for %s: %v", o.ID, err)
			}
		}
		s.notify(ctx, o.UserID, fmt.Sprintf("Payment for order %s confirmed, funds are locked in escrow.", o.ID), "ORDER", o.ID)
		s.publish(TopicOrderConfirmed, EventOrderConfirmed, o.ID, OrderConfirmedPayload{
			OrderID: o.ID, PaymentRef: o.PaymentRef, AmountPi: o.TotalPi.String(),
		})
	case outMismatch:
		log.Printf("orders: amount mismatch on %s: reported %s, expected %s — canceled and flagged",
			o.ID, in.Amount.String(), o.TotalPi.String())
		s.publish(TopicOrderCanceled, EventOrderCanceled, o.ID, OrderCanceledPayload{OrderID: o.ID, Reason: "AMOUNT_MISMATCH"})
		return o, ErrAmountMismatch
	case outFailed:
		s.notify(ctx, o.UserID, fmt.Sprintf("Payment for order %s failed, the order was canceled.", o.ID), "ORDER", o.ID)
		s.publish(TopicOrderCanceled, EventOrderCanceled, o.ID, OrderCanceledPayload{OrderID: o.ID, Reason: "PAYMENT_FAILED"})
	}
	return o, nil
}

// CompleteOrder releases the escrowed funds to the seller. Only the original
// buyer may call it, and only from DELIVERED. Kalau release gagal, order tetap
// DELIVERED dan error diangkat ke caller untuk dicoba lagi.
func (s *Service) CompleteOrder(ctx context.Context, orderID, buyerID string) (*Order, error) {
	o, err := s.Store.UpdateOrderTx(ctx, orderID, func(o *Order) (bool, error) {
		if o.UserID != buyerID {
			return false, ErrNotBuyer
		}
		if o.Status != StatusDelivered {
			return false, fmt.Errorf("%w: %s", ErrInvalidState, o.Status)
		}
		gctx, cancel := context.WithTimeout(ctx, s.Settings.GatewayTimeout)
		defer cancel()
		if err := s.Gateway.Release(gctx, o.PaymentRef); err != nil {
			return false, err
		}
		o.Status = StatusCompleted
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, o.UserID, fmt.Sprintf("Order %s completed, funds released to the seller.", o.ID), "ORDER", o.ID)
	s.publish(TopicOrderCompleted, EventOrderCompleted, o.ID, OrderCompletedPayload{OrderID: o.ID, PaymentRef: o.PaymentRef})
	return o, nil
}

// CancelOrder cancels an unpaid order and restores its stock. Guarded on
// PENDING: order yang intent-nya sudah dikonfirmasi tidak bisa lewat sini.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) (*Order, error) {
	o, err := s.Store.UpdateOrderTx(ctx, orderID, func(o *Order) (bool, error) {
		if o.Status != StatusPending {
			return false, fmt.Errorf("%w: %s", ErrInvalidState, o.Status)
		}
		o.Status = StatusCanceled
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, o.UserID, fmt.Sprintf("Order %s was canceled.", o.ID), "ORDER", o.ID)
	s.publish(TopicOrderCanceled, EventOrderCanceled, o.ID, OrderCanceledPayload{OrderID: o.ID, Reason: reason})
	return o, nil
}

// MarkShipped is the admin fulfillment step; requires confirmed funds.
func (s *Service) MarkShipped(ctx context.Context, orderID, trackingNumber string) (*Order, error) {
	return s.Store.UpdateOrderTx(ctx, orderID, func(o *Order) (bool, error) {
		if o.Status != StatusProcessing || !o.Paid() {
			return false, fmt.Errorf("%w: %s", ErrInvalidState, o.Status)
		}
		o.Status = StatusShipped
		o.TrackingNumber = trackingNumber
		return false, nil
	})
}

func (s *Service) MarkDelivered(ctx context.Context, orderID string) (*Order, error) {
	return s.Store.UpdateOrderTx(ctx, orderID, func(o *Order) (bool, error) {
		if o.Status != StatusShipped {
			return false, fmt.Errorf("%w: %s", ErrInvalidState, o.Status)
		}
		o.Status = StatusDelivered
		return false, nil
	})
}

// Refund moves any non-terminal order to REFUNDED. Funds go back to the buyer
// first; stock is restored only when the goods never shipped.
func (s *Service) Refund(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.Store.UpdateOrderTx(ctx, orderID, func(o *Order) (bool, error) {
		if o.Status.Terminal() {
			return false, fmt.Errorf("%w: %s", ErrInvalidState, o.Status)
		}
		if o.Paid() && o.PaymentRef != "" {
			gctx, cancel := context.WithTimeout(ctx, s.Settings.GatewayTimeout)
			defer cancel()
			if err := s.Gateway.Refund(gctx, o.PaymentRef); err != nil {
				return false, err
			}
		}
		release := o.Status.StockHeld()
		o.Status = StatusRefunded
		return release, nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, o.UserID, fmt.Sprintf("Order %s was refunded.", o.ID), "ORDER", o.ID)
	s.publish(TopicOrderRefunded, EventOrderRefunded, o.ID, OrderRefundedPayload{OrderID: o.ID})
	return o, nil
}

// CancelExpired sweeps PENDING orders older than the expiration window.
// Tiap order independen: gagal satu, lanjut ke berikutnya.
func (s *Service) CancelExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.Settings.ExpireAfter)
	ids, err := s.Store.ExpiredPending(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, err := s.CancelOrder(ctx, id, "EXPIRED"); err != nil {
			// lost race dengan sweep lain atau payment masuk duluan — bukan error
			if errors.Is(err, ErrInvalidState) || errors.Is(err, ErrOrderNotFound) {
				continue
			}
			log.Printf("orders: sweep cancel %s: %v", id, err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	return s.Store.GetOrder(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Store.ListProducts(ctx)
}

func (s *Service) notify(ctx context.Context, userID, message, kind, relatedID string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, userID, message, kind, relatedID); err != nil {
		log.Printf("orders: notify %s: %v", userID, err)
	}
}

func (s *Service) publish(topic, eventType, orderID string, payload any) {
	if s.Events == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("orders: marshal %s payload: %v", eventType, err)
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.Name,
		CorrelationID: orderID,
		Payload:       raw,
	}
	value, err := json.Marshal(ev)
	if err != nil {
		log.Printf("orders: marshal %s envelope: %v", eventType, err)
		return
	}
	s.Events.Publish(topic, PartitionKey(orderID), value,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
