package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Yasser1728/tec/internal/orders"
	"github.com/Yasser1728/tec/internal/payment"
	"github.com/Yasser1728/tec/internal/redisx"
)

// Orders is what the handlers need from the order state machine.
type Orders interface {
	CreateOrder(ctx context.Context, in orders.CheckoutInput) (*orders.Order, error)
	ConfirmPayment(ctx context.Context, in orders.ReconcileInput) (*orders.Order, error)
	CompleteOrder(ctx context.Context, orderID, buyerID string) (*orders.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) (*orders.Order, error)
	GetOrder(ctx context.Context, id string) (*orders.Order, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type OrdersHandler struct {
	Orders Orders
	Redis  *redis.Client // optional status cache
}

type CheckoutReq struct {
	ExternalID      string            `json:"external_id,omitempty"`
	UserID          string            `json:"user_id"`
	Items           []orders.CartItem `json:"items"`
	ShippingAddress string            `json:"shipping_address"`
	SellerPiAddress string            `json:"seller_pi_address"`
}

type CheckoutResp struct {
	OrderID    string `json:"order_id"`
	PaymentRef string `json:"payment_reference"`
	Status     string `json:"status"`
	TotalPi    string `json:"total_pi"`
}

type CallbackReq struct {
	OrderID   string          `json:"order_id"`
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Post("/payment-callback", h.paymentCallback)
	r.Post("/orders/{id}/complete", h.completeOrder)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// userID from the auth context; token verification sits in front of us.
func userID(r *http.Request, bodyUserID string) string {
	if v := r.Header.Get("X-User-ID"); v != "" {
		return v
	}
	return bodyUserID
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	uid := userID(r, req.UserID)
	if uid == "" || len(req.Items) == 0 || req.ShippingAddress == "" || req.SellerPiAddress == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	o, err := h.Orders.CreateOrder(ctx, orders.CheckoutInput{
		ExternalID:      req.ExternalID,
		UserID:          uid,
		ShippingAddress: req.ShippingAddress,
		SellerAddress:   req.SellerPiAddress,
		Items:           req.Items,
	})
	if err != nil {
		var stockErr *orders.InsufficientStockError
		switch {
		case errors.As(err, &stockErr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error": "insufficient stock", "details": stockErr.Shortages,
			})
		case errors.Is(err, orders.ErrEmptyCart),
			errors.Is(err, orders.ErrBadQuantity),
			errors.Is(err, orders.ErrDuplicateItem),
			errors.Is(err, orders.ErrEmptyOrder),
			errors.Is(err, orders.ErrProductNotFound),
			errors.Is(err, payment.ErrInvalidAmount),
			errors.Is(err, payment.ErrRejected),
			errors.Is(err, payment.ErrUnavailable):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	h.cacheStatus(ctx, o)
	if req.ExternalID != "" && h.Redis != nil {
		// shortcut idempotency; DB tetap jadi kebenaran
		key := fmt.Sprintf(redisx.KeyIdemCheckout, req.ExternalID)
		_ = h.Redis.Set(ctx, key, o.ID, redisx.TTLIdempotency).Err()
	}

	writeJSON(w, http.StatusCreated, CheckoutResp{
		OrderID:    o.ID,
		PaymentRef: o.PaymentRef,
		Status:     string(o.Status),
		TotalPi:    o.TotalPi.String(),
	})
}

// paymentCallback always answers 200 so the gateway does not storm us with
// retries; detail sukses/gagal ada di body.
func (h *OrdersHandler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	var req CallbackReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "invalid json"})
		return
	}
	if req.OrderID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": "missing order_id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Orders.ConfirmPayment(ctx, orders.ReconcileInput{
		OrderID:   req.OrderID,
		Reference: req.Reference,
		Status:    req.Status,
		Amount:    req.Amount,
	})
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	if o != nil {
		h.cacheStatus(ctx, o)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *OrdersHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	uid := userID(r, "")
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	o, err := h.Orders.CompleteOrder(ctx, orderID, uid)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		case errors.Is(err, orders.ErrNotBuyer):
			writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		case errors.Is(err, orders.ErrInvalidState):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, payment.ErrUnavailable), errors.Is(err, payment.ErrRejected):
			// funds not released, order unchanged; caller may retry
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return
	}

	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]string{"order_id": o.ID, "status": string(o.Status)})
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	uid := userID(r, "")
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if o.UserID != uid {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": orders.ErrNotBuyer.Error()})
		return
	}

	o, err = h.Orders.CancelOrder(ctx, orderID, "BUYER_CANCEL")
	if err != nil {
		if errors.Is(err, orders.ErrInvalidState) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]string{"order_id": o.ID, "status": string(o.Status)})
}

type orderStatusBody struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	TotalPi   string    `json:"total_pi"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	// 2) fallback DB
	o, err := h.Orders.GetOrder(ctx, orderID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, orderStatusBody{
		OrderID: o.ID, Status: string(o.Status),
		TotalPi: o.TotalPi.String(), CreatedAt: o.CreatedAt,
	})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Orders.ListProducts(ctx)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(orderStatusBody{
		OrderID: o.ID, Status: string(o.Status),
		TotalPi: o.TotalPi.String(), CreatedAt: o.CreatedAt,
	})
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
