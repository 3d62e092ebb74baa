// Package nets integrates with the NETS QR gateway: QR code requests and
// the transaction-status polling stream that drives asynchronous checkout.
package nets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ResponseCodeSuccess is the gateway's success response code.
const ResponseCodeSuccess = "00"

// Transaction status values reported by the gateway.
const (
	TxnStatusSuccess = 1
	TxnStatusFailure = 2
)

// Client talks to the NETS QR gateway.
type Client struct {
	baseURL   string
	apiKey    string
	projectID string
	http      *http.Client
}

type Config struct {
	BaseURL   string
	APIKey    string
	ProjectID string
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		projectID: cfg.ProjectID,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// QRResponse is the gateway's answer to a QR code request.
type QRResponse struct {
	ResponseCode    string `json:"response_code"`
	TxnStatus       int    `json:"txn_status"`
	QRCode          string `json:"qr_code"`
	TxnRetrievalRef string `json:"txn_retrieval_ref"`
	NetworkStatus   int    `json:"network_status"`
}

// StatusResponse is one poll result for a pending transaction.
type StatusResponse struct {
	ResponseCode string `json:"response_code"`
	TxnStatus    int    `json:"txn_status"`
}

// Succeeded reports the terminal success state.
func (r *StatusResponse) Succeeded() bool {
	return r.ResponseCode == ResponseCodeSuccess && r.TxnStatus == TxnStatusSuccess
}

// Failed reports the terminal failure state, which the gateway only emits
// after the client-side timeout flag has been signalled.
func (r *StatusResponse) Failed() bool {
	return r.ResponseCode != ResponseCodeSuccess && r.TxnStatus == TxnStatusFailure
}

// RequestQRCode asks the gateway for a payment QR code for the given amount.
func (c *Client) RequestQRCode(ctx context.Context, amount float64, reference string) (*QRResponse, error) {
	payload := map[string]any{
		"project_id": c.projectID,
		"amount":     fmt.Sprintf("%.2f", amount),
		"reference":  reference,
	}

	var out QRResponse
	if err := c.post(ctx, "/qr/request", payload, &out); err != nil {
		return nil, fmt.Errorf("nets: request qr code: %w", err)
	}
	return &out, nil
}

// QueryTransactionStatus polls the gateway for a pending transaction.
// timeoutReached tells the gateway the client-side timer has expired, which
// lets it answer with a terminal failure status.
func (c *Client) QueryTransactionStatus(ctx context.Context, retrievalRef string, timeoutReached bool) (*StatusResponse, error) {
	timeoutFlag := "0"
	if timeoutReached {
		timeoutFlag = "1"
	}
	payload := map[string]any{
		"project_id":        c.projectID,
		"txn_retrieval_ref": retrievalRef,
		"frontend_timeout":  timeoutFlag,
	}

	var out StatusResponse
	if err := c.post(ctx, "/qr/query", payload, &out); err != nil {
		return nil, fmt.Errorf("nets: query transaction status: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

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
