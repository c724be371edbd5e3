package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PiClient talks JSON to the Pi platform escrow API. Any implementation of
// Gateway can replace it; this one is the default wiring.
type PiClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewPiClient(baseURL, apiKey string, timeout time.Duration) *PiClient {
	return &PiClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type intentBody struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	LockUntil     string `json:"lock_until,omitempty"`
}

func (b intentBody) intent() Intent {
	in := Intent{Reference: b.TransactionID, Status: Status(b.Status)}
	if b.LockUntil != "" {
		if t, err := time.Parse(time.RFC3339, b.LockUntil); err == nil {
			in.LockUntil = t
		}
	}
	return in
}

func (c *PiClient) Initiate(ctx context.Context, req InitiateRequest) (Intent, error) {
	if req.Amount.Sign() <= 0 {
		return Intent{}, ErrInvalidAmount
	}
	payload := map[string]any{
		"order_id":  req.OrderID,
		"amount":    req.Amount.String(),
		"recipient": req.Payee,
		"metadata":  req.Metadata,
	}
	var out intentBody
	if err := c.do(ctx, http.MethodPost, "/v1/escrow", payload, &out); err != nil {
		return Intent{}, err
	}
	return out.intent(), nil
}

func (c *PiClient) Verify(ctx context.Context, reference string) (Intent, error) {
	var out intentBody
	if err := c.do(ctx, http.MethodGet, "/v1/escrow/"+reference, nil, &out); err != nil {
		return Intent{}, err
	}
	return out.intent(), nil
}

func (c *PiClient) Release(ctx context.Context, reference string) error {
	return c.do(ctx, http.MethodPost, "/v1/escrow/"+reference+"/release", nil, nil)
}

func (c *PiClient) Refund(ctx context.Context, reference string) error {
	return c.do(ctx, http.MethodPost, "/v1/escrow/"+reference+"/refund", nil, nil)
}

func (c *PiClient) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Key "+c.APIKey)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

var _ Gateway = (*PiClient)(nil)
