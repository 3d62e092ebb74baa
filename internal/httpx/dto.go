package httpx

import (
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/session"
)

// RedirectResponse answers form-driven flows. The frontend follows
// RedirectURL; flashes surface any queued messages.
type RedirectResponse struct {
	OK          bool            `json:"ok"`
	RedirectURL string          `json:"redirectUrl"`
	Flashes     []session.Flash `json:"flashes,omitempty"`
}

type StatusUpdateRequest struct {
	Status string `json:"status"`
	Kind   string `json:"kind,omitempty"` // "shipping" (default) or "payment"
}

type StatusUpdateResponse struct {
	Updated bool `json:"updated"`
}

type CaptureRequest struct {
	OrderID string `json:"orderId"`
}

type CaptureResponse struct {
	OK          bool   `json:"ok"`
	RedirectURL string `json:"redirectUrl"`
}

type CreatePayPalOrderResponse struct {
	ID string `json:"id"`
}

type TopUpRequest struct {
	Amount float64 `json:"amount"`
}

type TopUpResponse struct {
	Balance float64 `json:"balance"`
}

type OrderListResponse struct {
	Orders  []order.Record  `json:"orders"`
	Flashes []session.Flash `json:"flashes,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
