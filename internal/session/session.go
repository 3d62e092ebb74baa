// Package session holds per-visitor state (cart, flash messages, last
// order, pending payment tokens) and the staging area for asynchronous
// checkouts awaiting NETS or PayPal confirmation.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/supermartsg/checkout/internal/cards"
	"github.com/supermartsg/checkout/internal/cart"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/pricing"
)

// PendingTTL bounds how long a staged NETS/PayPal checkout may wait for
// confirmation before it expires.
const PendingTTL = 30 * time.Minute

// savedCardsCacheLimit caps the session-side cache of recently saved cards.
const savedCardsCacheLimit = 5

// ErrPendingNotFound indicates the pending-checkout token is unknown,
// already consumed, or expired.
var ErrPendingNotFound = errors.New("pending checkout not found")

// User identifies the authenticated visitor, when there is one.
type User struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Flash is a one-shot user-visible message.
type Flash struct {
	Kind    string `json:"kind"` // "success" or "error"
	Message string `json:"message"`
}

// Session is the per-visitor state. Cart stays raw JSON so the normalizer
// can accept legacy shapes; everything else is typed.
type Session struct {
	ID   string `json:"id"`
	User *User  `json:"user,omitempty"`

	Cart            json.RawMessage `json:"cart,omitempty"`
	LastOrder       *order.Record   `json:"lastOrder,omitempty"`
	OrderHistory    []order.Record  `json:"orderHistory,omitempty"`
	PendingPayNow   bool            `json:"pendingPayNow,omitempty"`
	SavedCardsCache []cards.Card    `json:"savedCardsCache,omitempty"`

	PendingNetsToken   string `json:"pendingNetsToken,omitempty"`
	PendingPayPalToken string `json:"pendingPayPalToken,omitempty"`

	Flashes []Flash `json:"flashes,omitempty"`
}

func (s *Session) UserID() int64 {
	if s.User == nil {
		return 0
	}
	return s.User.ID
}

func (s *Session) UserEmail() string {
	if s.User == nil {
		return ""
	}
	return s.User.Email
}

// AddFlash queues a one-shot message for the next page render.
func (s *Session) AddFlash(kind, message string) {
	s.Flashes = append(s.Flashes, Flash{Kind: kind, Message: message})
}

// ConsumeFlashes returns and clears the queued messages.
func (s *Session) ConsumeFlashes() []Flash {
	flashes := s.Flashes
	s.Flashes = nil
	return flashes
}

// CacheSavedCard keeps just-saved card metadata visible for the rest of the
// session even if the durable write lagged or failed. Metadata only.
func (s *Session) CacheSavedCard(card cards.Card) {
	cache := append([]cards.Card{card}, s.SavedCardsCache...)
	if len(cache) > savedCardsCacheLimit {
		cache = cache[:savedCardsCacheLimit]
	}
	s.SavedCardsCache = cache
}

// PendingCheckout is the staged order data awaiting asynchronous payment
// confirmation. It is stored server-side under its token with a mandatory
// expiry; the session only carries the token.
type PendingCheckout struct {
	Token         string          `json:"token"`
	InvoiceNumber string          `json:"invoiceNumber"`
	Customer      order.Customer  `json:"customer"`
	CartItems     []cart.LineItem `json:"cartItems"`
	Totals        pricing.Totals  `json:"totals"`

	PayPalOrderID    string `json:"paypalOrderId,omitempty"`
	NetsRetrievalRef string `json:"netsRetrievalRef,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// NewPendingCheckout stages order data under a fresh token with the
// standard TTL.
func NewPendingCheckout(invoiceNumber string, customer order.Customer,
	items []cart.LineItem, totals pricing.Totals) *PendingCheckout {
	now := time.Now().UTC()
	return &PendingCheckout{
		Token:         uuid.NewString(),
		InvoiceNumber: invoiceNumber,
		Customer:      customer,
		CartItems:     items,
		Totals:        totals,
		CreatedAt:     now,
		ExpiresAt:     now.Add(PendingTTL),
	}
}

// Expired reports whether the staged checkout has outlived its TTL.
func (p *PendingCheckout) Expired() bool {
	return time.Now().After(p.ExpiresAt)
}

// Store is the port for session and pending-checkout persistence.
type Store interface {
	// Load returns the session for id, or a fresh one when absent.
	Load(ctx context.Context, id string) (*Session, error)

	// Save persists the session. Completion of Save is the signal that
	// session mutations are visible to the next request.
	Save(ctx context.Context, sess *Session) error

	// StagePending stores a pending checkout under its token with expiry.
	StagePending(ctx context.Context, pending *PendingCheckout) error

	// Pending reads a staged checkout without consuming it.
	Pending(ctx context.Context, token string) (*PendingCheckout, error)

	// TakePending atomically consumes a staged checkout, so finalization
	// can happen at most once per token.
	TakePending(ctx context.Context, token string) (*PendingCheckout, error)
}
