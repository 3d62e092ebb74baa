// Package checkout sequences order finalization: normalize the session
// cart, validate fields, resolve the payment method, reserve stock,
// confirm payment, persist the order and clear the cart.
//
// Step ordering is method-dependent on purpose: synchronous methods
// reserve stock before payment; PayPal captures first and reserves only
// after the capture reports COMPLETED; NETS stages the checkout and
// finalizes from the status stream.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/supermartsg/checkout/internal/cards"
	"github.com/supermartsg/checkout/internal/cart"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/payment"
	"github.com/supermartsg/checkout/internal/payment/nets"
	"github.com/supermartsg/checkout/internal/payment/paypal"
	"github.com/supermartsg/checkout/internal/pricing"
	"github.com/supermartsg/checkout/internal/session"
	"github.com/supermartsg/checkout/internal/stock"
	"github.com/supermartsg/checkout/internal/wallet"
)

// PayPalGateway is the slice of the PayPal client the orchestrator needs.
type PayPalGateway interface {
	CreateOrder(ctx context.Context, amount, invoiceNumber string) (string, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.CaptureResult, error)
}

// NetsGateway is the slice of the NETS client the orchestrator needs.
type NetsGateway interface {
	RequestQRCode(ctx context.Context, amount float64, reference string) (*nets.QRResponse, error)
	nets.Gateway
}

// Orchestrator wires the checkout workflow together. All collaborators are
// injected; it owns no external state of its own.
type Orchestrator struct {
	ledger     *stock.Ledger
	wallet     *wallet.Service
	cards      cards.Store
	carts      cart.Store
	orders     *order.Store
	sessions   session.Store
	strategies payment.Registry

	paypal PayPalGateway
	nets   NetsGateway
	poller *nets.Poller

	paypalClientID string
}

type Config struct {
	Ledger     *stock.Ledger
	Wallet     *wallet.Service
	Cards      cards.Store
	Carts      cart.Store
	Orders     *order.Store
	Sessions   session.Store
	Strategies payment.Registry

	PayPal         PayPalGateway
	Nets           NetsGateway
	NetsPoller     *nets.Poller
	PayPalClientID string
}

func New(cfg Config) *Orchestrator {
	poller := cfg.NetsPoller
	if poller == nil && cfg.Nets != nil {
		poller = nets.NewPoller(cfg.Nets, nets.DefaultPollInterval, nets.DefaultMaxAttempts)
	}
	return &Orchestrator{
		ledger:         cfg.Ledger,
		wallet:         cfg.Wallet,
		cards:          cfg.Cards,
		carts:          cfg.Carts,
		orders:         cfg.Orders,
		sessions:       cfg.Sessions,
		strategies:     cfg.Strategies,
		paypal:         cfg.PayPal,
		nets:           cfg.Nets,
		poller:         poller,
		paypalClientID: cfg.PayPalClientID,
	}
}

// Form carries the checkout form fields.
type Form struct {
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`

	SavedPaymentMethod int64  `json:"savedPaymentMethod,omitempty"`
	CardNumber         string `json:"cardNumber,omitempty"`
	CardExpiry         string `json:"cardExpiry,omitempty"`
	CardCVV            string `json:"cardCvv,omitempty"`
	CardName           string `json:"cardName,omitempty"`
	SaveCard           bool   `json:"saveCard,omitempty"`
}

// Outcome is the successful result of a checkout flow.
type Outcome struct {
	Redirect      string
	InvoiceNumber string
}

// View is the checkout page view-model.
type View struct {
	CartItems      []cart.LineItem `json:"cartItems"`
	Totals         pricing.Totals  `json:"totals"`
	WalletBalance  float64         `json:"walletBalance"`
	SavedCards     []cards.Card    `json:"savedCards"`
	PayPalClientID string          `json:"paypalClientId"`
}

// normalizeCart snapshots the session cart into canonical line items and
// rewrites the session copy so later reads in this request agree.
func (o *Orchestrator) normalizeCart(sess *session.Session) []cart.LineItem {
	items, canonical := cart.Normalize(sess.Cart)
	sess.Cart = canonical
	return items
}

// RenderCheckout builds the checkout view-model. Empty carts bounce back to
// the cart page.
func (o *Orchestrator) RenderCheckout(ctx context.Context, sess *session.Session) (*View, *FlowError) {
	items := o.normalizeCart(sess)
	if len(items) == 0 {
		return nil, flowErr("Your cart is empty. Add items before checking out.", "/cart", http.StatusBadRequest, nil)
	}

	view := &View{
		CartItems:      items,
		Totals:         pricing.Calculate(items),
		PayPalClientID: o.paypalClientID,
		SavedCards:     sess.SavedCardsCache,
	}

	userID := sess.UserID()
	if userID == 0 {
		return view, nil
	}

	if balance, err := o.wallet.Balance(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "wallet balance load failed", "user_id", userID, "error", err)
	} else {
		view.WalletBalance = balance
	}

	if dbCards, err := o.cards.ListByUser(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "payment methods load failed", "user_id", userID, "error", err)
	} else {
		view.SavedCards = mergeCards(dbCards, sess.SavedCardsCache)
	}

	return view, nil
}

// ProcessCheckout runs the synchronous checkout flow (cash, card, wallet,
// PayNow). NETS and PayPal enter through their own two-phase operations.
func (o *Orchestrator) ProcessCheckout(ctx context.Context, sess *session.Session, form Form) (Outcome, *FlowError) {
	items := o.normalizeCart(sess)
	if len(items) == 0 {
		return Outcome{}, flowErr("Your cart is empty. Add items before checking out.", "/checkout", http.StatusBadRequest, nil)
	}

	if ferr := validateRequired(form, true); ferr != nil {
		return Outcome{}, ferr
	}

	method, ok := payment.ParseMethod(form.PaymentMethod)
	if !ok || method == payment.MethodNets || method == payment.MethodPayPal {
		return Outcome{}, flowErr("Please choose a valid payment method.", "/checkout", http.StatusBadRequest, nil)
	}
	strategy, ok := o.strategies[method]
	if !ok {
		return Outcome{}, flowErr("Please choose a valid payment method.", "/checkout", http.StatusBadRequest, nil)
	}

	totals := pricing.Calculate(items)
	invoiceNumber := order.NewInvoiceNumber()
	customer := order.Customer{
		UserID:        sess.UserID(),
		FullName:      form.FullName,
		Email:         form.Email,
		Address:       form.Address,
		PaymentMethod: string(method),
	}

	// Wallet balance is pre-checked before stock so an obviously short
	// balance never leaves stock decremented. The actual debit later is
	// still conditional.
	if method == payment.MethodWallet {
		if sess.UserID() == 0 {
			return Outcome{}, flowErr("Wallet payments require a logged-in account.", "/checkout", http.StatusUnauthorized, payment.ErrLoginRequired)
		}
		balance, err := o.wallet.Balance(ctx, sess.UserID())
		if err != nil {
			return Outcome{}, flowErr("Unable to check wallet balance. Please try again.", "/checkout", http.StatusInternalServerError, err)
		}
		if balance < totals.Total {
			return Outcome{}, flowErr("Insufficient wallet balance. Please top up your wallet.", "/checkout", http.StatusPaymentRequired, wallet.ErrInsufficientBalance)
		}
	}

	if ferr := o.reserveStock(ctx, items); ferr != nil {
		return Outcome{}, ferr
	}

	conf, err := strategy.Confirm(ctx, invoiceNumber, totals, customer, payment.Request{
		UserID:      sess.UserID(),
		SavedCardID: form.SavedPaymentMethod,
		CardNumber:  form.CardNumber,
		CardExpiry:  form.CardExpiry,
		CardCVV:     form.CardCVV,
		CardName:    form.CardName,
		SaveCard:    form.SaveCard,
	})
	if err != nil {
		// Stock reserved for non-PayPal methods stays decremented here;
		// there is no compensating release.
		return Outcome{}, mapPaymentError(err)
	}

	customer.CardLast4 = conf.CardLast4
	o.saveCardIfNeeded(ctx, sess, conf.CardToSave)

	rec := order.Build(items, totals, invoiceNumber, customer, conf.PaymentStatus, conf.PayNow, nil)
	o.persistOrder(ctx, sess, rec)

	redirect := "/invoice"
	if method == payment.MethodPayNow {
		redirect = "/paynow"
		sess.PendingPayNow = true
	}
	sess.AddFlash("success", fmt.Sprintf("Order placed! An invoice has been generated for %s.", customer.Email))

	if err := o.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "session save after checkout failed", "session_id", sess.ID, "error", err)
	}
	return Outcome{Redirect: redirect, InvoiceNumber: invoiceNumber}, nil
}

// reserveStock runs the ledger and maps its failures onto flow errors.
func (o *Orchestrator) reserveStock(ctx context.Context, items []cart.LineItem) *FlowError {
	result, err := o.ledger.Reserve(ctx, items)
	if err != nil {
		var insufficient *stock.InsufficientStockError
		if errors.As(err, &insufficient) {
			name := insufficient.ProductName
			if name == "" {
				name = "Product " + insufficient.ProductID
			}
			return flowErr(
				fmt.Sprintf("Not enough stock for %s. Available: %d, requested: %d.",
					name, insufficient.Available, insufficient.Requested),
				"/cart", http.StatusConflict, err)
		}
		slog.ErrorContext(ctx, "stock update failed", "error", err)
		return flowErr("Unable to update stock. Please try again.", "/cart", http.StatusInternalServerError, err)
	}
	if result.Skipped {
		slog.WarnContext(ctx, "stock update skipped", "reason", result.Reason)
	}
	return nil
}

// persistOrder writes the completed order everywhere it lives: the session
// pointer and bounded session history, the durable per-user history and
// global feed, then clears both carts.
func (o *Orchestrator) persistOrder(ctx context.Context, sess *session.Session, rec order.Record) {
	sess.LastOrder = &rec
	history := append([]order.Record{rec}, sess.OrderHistory...)
	if len(history) > order.UserHistoryLimit {
		history = history[:order.UserHistoryLimit]
	}
	sess.OrderHistory = history

	o.orders.Record(rec)

	if userID := sess.UserID(); userID != 0 {
		if err := o.carts.Clear(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "failed to clear persisted cart after checkout",
				"user_id", userID, "error", err)
		}
	}
	sess.Cart = []byte("[]")
}

// saveCardIfNeeded persists an opted-in card. Failures are logged, never
// surfaced; the session cache keeps the card visible either way.
func (o *Orchestrator) saveCardIfNeeded(ctx context.Context, sess *session.Session, card *cards.Card) {
	if card == nil {
		return
	}
	id, err := o.cards.Save(ctx, *card)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save card", "user_id", card.UserID, "error", err)
	} else {
		card.ID = id
	}
	sess.CacheSavedCard(*card)
}

func validateRequired(form Form, needMethod bool) *FlowError {
	missing := strings.TrimSpace(form.FullName) == "" ||
		strings.TrimSpace(form.Email) == "" ||
		strings.TrimSpace(form.Address) == ""
	if needMethod {
		missing = missing || strings.TrimSpace(form.PaymentMethod) == ""
	}
	if missing {
		return flowErr("Please complete all checkout fields before placing your order.",
			"/checkout", http.StatusBadRequest, nil)
	}
	return nil
}

func mapPaymentError(err error) *FlowError {
	var validation *payment.ValidationError
	switch {
	case errors.As(err, &validation):
		return flowErr(validation.Message, "/checkout", http.StatusBadRequest, err)
	case errors.Is(err, cards.ErrNotFound):
		return flowErr("Saved card not found. Please re-enter card details.", "/checkout", http.StatusBadRequest, err)
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return flowErr("Insufficient wallet balance. Please top up your wallet.", "/checkout", http.StatusPaymentRequired, err)
	case errors.Is(err, payment.ErrLoginRequired):
		return flowErr("Wallet payments require a logged-in account.", "/checkout", http.StatusUnauthorized, err)
	default:
		return flowErr("Unable to process payment. Please try again.", "/checkout", http.StatusBadGateway, err)
	}
}

func mergeCards(dbCards, cached []cards.Card) []cards.Card {
	combined := append([]cards.Card{}, dbCards...)
	for _, c := range cached {
		duplicate := false
		for _, d := range dbCards {
			if d.ID != 0 && c.ID != 0 && d.ID == c.ID {
				duplicate = true
				break
			}
		}
		if !duplicate {
			combined = append(combined, c)
		}
	}
	return combined
}
