package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderConfirmed = "OrderConfirmed"
	EventOrderCanceled  = "OrderCanceled"
	EventOrderCompleted = "OrderCompleted"
	EventOrderRefunded  = "OrderRefunded"
	EventNotification   = "NotificationQueued"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "commerce-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload tipe per event ----

type LineQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID string    `json:"order_id"`
	UserID  string    `json:"user_id"`
	Status  Status    `json:"status"`
	TotalPi string    `json:"total_pi"`
	Items   []LineQty `json:"items"`
}

type OrderConfirmedPayload struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
	AmountPi   string `json:"amount_pi"`
}

type OrderCanceledPayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"` // EXPIRED | PAYMENT_FAILED | AMOUNT_MISMATCH | BUYER_CANCEL
}

type OrderCompletedPayload struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_ref"`
}

type OrderRefundedPayload struct {
	OrderID string `json:"order_id"`
}

type NotificationPayload struct {
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
	Kind           string `json:"kind"`
	Message        string `json:"message"`
	RelatedID      string `json:"related_id,omitempty"`
}
