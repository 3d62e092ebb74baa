// Package paypal is a minimal client for the PayPal Checkout Orders v2 API:
// client-credentials token, order creation, and capture.
package paypal

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusCompleted is the only capture status treated as payment confirmed.
const StatusCompleted = "COMPLETED"

// ErrMissingConfig indicates the client id/secret were not configured.
var ErrMissingConfig = errors.New("paypal: missing client configuration")

// Client talks to the PayPal REST API.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
}

// Config for NewClient. BaseURL defaults to the sandbox environment.
type Config struct {
	BaseURL  string
	ClientID string
	Secret   string
}

func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = "https://api-m.sandbox.paypal.com"
	}
	return &Client{
		baseURL:  strings.TrimRight(base, "/"),
		clientID: cfg.ClientID,
		secret:   cfg.Secret,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ClientID exposes the public identifier the frontend SDK needs.
func (c *Client) ClientID() string { return c.clientID }

// CaptureResult is the flattened outcome of a capture call.
type CaptureResult struct {
	OrderID    string
	CaptureID  string
	Status     string
	PayerEmail string
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.secret == "" {
		return "", ErrMissingConfig
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("paypal: build token request: %w", err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.secret))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("paypal: token: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("paypal: token response missing access_token")
	}
	return body.AccessToken, nil
}

// CreateOrder creates a remote order for the exact amount that will later
// be captured. Amount is a pre-formatted two-decimal string; no
// recomputation may happen between create and capture.
func (c *Client) CreateOrder(ctx context.Context, amount, invoiceNumber string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"amount": map[string]any{
				"currency_code": "SGD",
				"value":         amount,
			},
			"invoice_id": invoiceNumber,
		}},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("paypal: encode create order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/checkout/orders", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("paypal: build create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var body struct {
		ID string `json:"id"`
	}
	if err := c.do(req, &body); err != nil {
		return "", fmt.Errorf("paypal: create order: %w", err)
	}
	if body.ID == "" {
		return "", errors.New("paypal: create order response missing id")
	}
	return body.ID, nil
}

// captureResponse mirrors the nested shape of the capture API response.
type captureResponse struct {
	Status        string `json:"status"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
	Payer struct {
		EmailAddress string `json:"email_address"`
	} `json:"payer"`
}

// CaptureOrder captures a previously created order. The caller must verify
// Status equals StatusCompleted before treating payment as confirmed.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*CaptureResult, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/checkout/orders/"+orderID+"/capture", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("paypal: build capture request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var body captureResponse
	if err := c.do(req, &body); err != nil {
		return nil, fmt.Errorf("paypal: capture order %s: %w", orderID, err)
	}

	result := &CaptureResult{
		OrderID: orderID,
		Status:  body.Status,
	}
	if len(body.PurchaseUnits) > 0 && len(body.PurchaseUnits[0].Payments.Captures) > 0 {
		capture := body.PurchaseUnits[0].Payments.Captures[0]
		result.CaptureID = capture.ID
		if capture.Status != "" {
			result.Status = capture.Status
		}
	}
	result.PayerEmail = body.Payer.EmailAddress
	return result, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", res.StatusCode, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
