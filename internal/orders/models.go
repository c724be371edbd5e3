package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            string          `json:"id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Stock         int             `json:"stock"`
	PricePi       decimal.Decimal `json:"price_pi"`
	SellerAddress string          `json:"seller_pi_address"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Order struct {
	ID              string          `json:"id"`
	ExternalID      string          `json:"external_id,omitempty"`
	UserID          string          `json:"user_id"`
	Status          Status          `json:"status"`
	TotalPi         decimal.Decimal `json:"total_pi"` // immutable after creation
	PaymentRef      string          `json:"payment_ref,omitempty"`
	EscrowReleaseAt *time.Time      `json:"escrow_release_at,omitempty"`
	ShippingAddress string          `json:"shipping_address"`
	TrackingNumber  string          `json:"tracking_number,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	StockReleased   bool            `json:"-"`
	Lines           []OrderLine     `json:"lines,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Paid reports whether a success confirmation was already applied.
func (o *Order) Paid() bool { return o.PaidAt != nil }

type OrderLine struct {
	ID        int64  `json:"id"`
	OrderID   string `json:"order_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	// Snapshot harga saat beli; tidak pernah dihitung ulang dari katalog.
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}
