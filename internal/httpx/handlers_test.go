package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Yasser1728/tec/internal/orders"
)

// stubOrders lets each test script the service outcome per method.
type stubOrders struct {
	createFn  func(ctx context.Context, in orders.CheckoutInput) (*orders.Order, error)
	confirmFn func(ctx context.Context, in orders.ReconcileInput) (*orders.Order, error)
	getFn     func(ctx context.Context, id string) (*orders.Order, error)
}

func (s *stubOrders) CreateOrder(ctx context.Context, in orders.CheckoutInput) (*orders.Order, error) {
	return s.createFn(ctx, in)
}

func (s *stubOrders) ConfirmPayment(ctx context.Context, in orders.ReconcileInput) (*orders.Order, error) {
	return s.confirmFn(ctx, in)
}

func (s *stubOrders) CompleteOrder(ctx context.Context, orderID, buyerID string) (*orders.Order, error) {
	if buyerID != "alice" {
		return nil, orders.ErrNotBuyer
	}
	return &orders.Order{ID: orderID, UserID: buyerID, Status: orders.StatusCompleted}, nil
}

func (s *stubOrders) CancelOrder(ctx context.Context, orderID, reason string) (*orders.Order, error) {
	return &orders.Order{ID: orderID, Status: orders.StatusCanceled}, nil
}

func (s *stubOrders) GetOrder(ctx context.Context, id string) (*orders.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, id)
	}
	return nil, orders.ErrOrderNotFound
}

func (s *stubOrders) ListProducts(ctx context.Context) ([]orders.Product, error) {
	return nil, nil
}

func newTestServer(stub *stubOrders) *httptest.Server {
	r := NewRouter()
	h := &OrdersHandler{Orders: stub}
	h.Register(r)
	return httptest.NewServer(r)
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func TestCheckoutCreated(t *testing.T) {
	stub := &stubOrders{
		createFn: func(ctx context.Context, in orders.CheckoutInput) (*orders.Order, error) {
			return &orders.Order{
				ID: "ord-1", UserID: in.UserID, Status: orders.StatusProcessing,
				PaymentRef: "pi_tx_1", TotalPi: decimal.RequireFromString("20.000000000"),
			}, nil
		},
	}
	srv := newTestServer(stub)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/checkout", CheckoutReq{
		UserID:          "alice",
		Items:           []orders.CartItem{{ProductID: "p1", Qty: 2}},
		ShippingAddress: "1 Test Lane",
		SellerPiAddress: "pi_seller",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var out CheckoutResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.OrderID != "ord-1" || out.PaymentRef != "pi_tx_1" || out.TotalPi != "20.000000000" {
		t.Fatalf("body = %+v", out)
	}
}

func TestCheckoutMissingFields(t *testing.T) {
	srv := newTestServer(&stubOrders{})
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/checkout", CheckoutReq{UserID: "alice"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCheckoutInsufficientStockDetails(t *testing.T) {
	stub := &stubOrders{
		createFn: func(ctx context.Context, in orders.CheckoutInput) (*orders.Order, error) {
			return nil, &orders.InsufficientStockError{Shortages: []orders.StockShortage{
				{ProductID: "p2", Required: 3, Available: 1},
			}}
		},
	}
	srv := newTestServer(stub)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/checkout", CheckoutReq{
		UserID:          "alice",
		Items:           []orders.CartItem{{ProductID: "p2", Qty: 3}},
		ShippingAddress: "1 Test Lane",
		SellerPiAddress: "pi_seller",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var out struct {
		Error   string                 `json:"error"`
		Details []orders.StockShortage `json:"details"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Details) != 1 || out.Details[0].ProductID != "p2" || out.Details[0].Available != 1 {
		t.Fatalf("details = %+v", out.Details)
	}
}

func TestPaymentCallbackAlways200(t *testing.T) {
	stub := &stubOrders{
		confirmFn: func(ctx context.Context, in orders.ReconcileInput) (*orders.Order, error) {
			return nil, orders.ErrAmountMismatch
		},
	}
	srv := newTestServer(stub)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/payment-callback", CallbackReq{
		OrderID: "ord-1", Status: "success", Amount: decimal.RequireFromString("19"),
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on failure", resp.StatusCode)
	}
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ok, _ := out["ok"].(bool); ok {
		t.Fatalf("body = %v, want ok=false", out)
	}

	// unknown order is a quiet success: the service answers (nil, nil)
	stub.confirmFn = func(ctx context.Context, in orders.ReconcileInput) (*orders.Order, error) {
		return nil, nil
	}
	resp2 := postJSON(t, srv.URL+"/payment-callback", CallbackReq{OrderID: "nope", Status: "success"})
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp2.StatusCode)
	}
}

func TestCompleteOrderAuth(t *testing.T) {
	srv := newTestServer(&stubOrders{})
	defer srv.Close()

	// no user
	resp := postJSON(t, srv.URL+"/orders/ord-1/complete", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing user: status = %d, want 401", resp.StatusCode)
	}

	// wrong buyer
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/orders/ord-1/complete", nil)
	req.Header.Set("X-User-ID", "mallory")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong buyer: status = %d, want 403", resp2.StatusCode)
	}

	// the buyer
	req3, _ := http.NewRequest(http.MethodPost, srv.URL+"/orders/ord-1/complete", nil)
	req3.Header.Set("X-User-ID", "alice")
	resp3, err := http.DefaultClient.Do(req3)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusOK {
		t.Fatalf("buyer complete: status = %d, want 200", resp3.StatusCode)
	}
}
