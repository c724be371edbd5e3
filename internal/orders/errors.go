package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrBadQuantity     = errors.New("quantity must be positive")
	ErrDuplicateItem   = errors.New("duplicate product in cart")
	ErrEmptyOrder      = errors.New("order total is zero")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrNotBuyer        = errors.New("only the buyer may perform this action")
	ErrInvalidState    = errors.New("order state does not allow this transition")
	ErrAmountMismatch  = errors.New("reported amount does not match order total")
)

type StockShortage struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

// InsufficientStockError carries per-product detail; the whole checkout is
// rejected, no line is applied partially.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %d product(s)", len(e.Shortages))
}
