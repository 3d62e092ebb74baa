package checkout

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supermartsg/checkout/internal/cards"
	"github.com/supermartsg/checkout/internal/cart"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/payment"
	"github.com/supermartsg/checkout/internal/payment/nets"
	"github.com/supermartsg/checkout/internal/payment/paypal"
	"github.com/supermartsg/checkout/internal/session"
	"github.com/supermartsg/checkout/internal/stock"
	"github.com/supermartsg/checkout/internal/wallet"
)

// ── fakes ────────────────────────────────────────────────────────────────

type fakeStockStore struct {
	column string
	stock  map[string]int
}

func (f *fakeStockStore) StockColumn(context.Context) (string, error) { return f.column, nil }

func (f *fakeStockStore) Stock(_ context.Context, productID string) (int, error) {
	qty, ok := f.stock[productID]
	if !ok {
		return 0, stock.ErrProductNotFound
	}
	return qty, nil
}

func (f *fakeStockStore) DecrementStock(_ context.Context, productID string, quantity int) (bool, error) {
	qty, ok := f.stock[productID]
	if !ok {
		return false, stock.ErrProductNotFound
	}
	if qty < quantity {
		return false, nil
	}
	f.stock[productID] = qty - quantity
	return true, nil
}

type fakeWalletStore struct {
	balances map[int64]float64
}

func (f *fakeWalletStore) Balance(_ context.Context, userID int64) (float64, error) {
	return f.balances[userID], nil
}

func (f *fakeWalletStore) Debit(_ context.Context, userID int64, amount float64) (bool, error) {
	if f.balances[userID] < amount {
		return false, nil
	}
	f.balances[userID] -= amount
	return true, nil
}

func (f *fakeWalletStore) Credit(_ context.Context, userID int64, amount float64) (float64, error) {
	f.balances[userID] += amount
	return f.balances[userID], nil
}

type fakeCardStore struct {
	byID   map[int64]cards.Card
	nextID int64
}

func (f *fakeCardStore) ListByUser(_ context.Context, userID int64) ([]cards.Card, error) {
	var out []cards.Card
	for _, c := range f.byID {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCardStore) ForUser(_ context.Context, id, userID int64) (cards.Card, error) {
	c, ok := f.byID[id]
	if !ok || c.UserID != userID {
		return cards.Card{}, cards.ErrNotFound
	}
	return c, nil
}

func (f *fakeCardStore) Save(_ context.Context, c cards.Card) (int64, error) {
	f.nextID++
	c.ID = f.nextID
	f.byID[f.nextID] = c
	return f.nextID, nil
}

type fakeCartStore struct {
	cleared []int64
}

func (f *fakeCartStore) UserCart(context.Context, int64) ([]cart.LineItem, error) { return nil, nil }

func (f *fakeCartStore) UpsertItem(context.Context, int64, string, int) error { return nil }

func (f *fakeCartStore) RemoveItem(context.Context, int64, string) error { return nil }

func (f *fakeCartStore) Clear(_ context.Context, userID int64) error {
	f.cleared = append(f.cleared, userID)
	return nil
}

type fakePayPal struct {
	created  []string
	captures map[string]*paypal.CaptureResult
}

func (f *fakePayPal) CreateOrder(_ context.Context, amount, _ string) (string, error) {
	f.created = append(f.created, amount)
	return "remote-1", nil
}

func (f *fakePayPal) CaptureOrder(_ context.Context, orderID string) (*paypal.CaptureResult, error) {
	if result, ok := f.captures[orderID]; ok {
		return result, nil
	}
	return &paypal.CaptureResult{OrderID: orderID, Status: paypal.StatusCompleted, CaptureID: "cap-1"}, nil
}

type fakeNets struct {
	statuses []*nets.StatusResponse
	calls    int
}

func (f *fakeNets) RequestQRCode(context.Context, float64, string) (*nets.QRResponse, error) {
	return &nets.QRResponse{
		ResponseCode:    nets.ResponseCodeSuccess,
		QRCode:          "base64-qr",
		TxnRetrievalRef: "ref-1",
	}, nil
}

func (f *fakeNets) QueryTransactionStatus(context.Context, string, bool) (*nets.StatusResponse, error) {
	i := f.calls
	f.calls++
	if i < len(f.statuses) {
		return f.statuses[i], nil
	}
	return &nets.StatusResponse{ResponseCode: "09", TxnStatus: 0}, nil
}

// ── harness ──────────────────────────────────────────────────────────────

type harness struct {
	orc      *Orchestrator
	stock    *fakeStockStore
	wallets  *fakeWalletStore
	cards    *fakeCardStore
	carts    *fakeCartStore
	orders   *order.Store
	sessions *session.MemoryStore
	paypal   *fakePayPal
	nets     *fakeNets
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		stock:    &fakeStockStore{column: "quantity", stock: map[string]int{"p1": 10, "p2": 5}},
		wallets:  &fakeWalletStore{balances: map[int64]float64{}},
		cards:    &fakeCardStore{byID: map[int64]cards.Card{}},
		carts:    &fakeCartStore{},
		orders:   order.NewStore(nil),
		sessions: session.NewMemoryStore(),
		paypal:   &fakePayPal{captures: map[string]*paypal.CaptureResult{}},
		nets:     &fakeNets{},
	}

	walletSrv := wallet.NewService(h.wallets)
	h.orc = New(Config{
		Ledger:   stock.NewLedger(h.stock),
		Wallet:   walletSrv,
		Cards:    h.cards,
		Carts:    h.carts,
		Orders:   h.orders,
		Sessions: h.sessions,
		Strategies: payment.NewRegistry(
			payment.CashStrategy{},
			payment.PayNowStrategy{},
			payment.NewWalletStrategy(walletSrv),
			payment.NewCardStrategy(h.cards),
		),
		PayPal:         h.paypal,
		Nets:           h.nets,
		NetsPoller:     nets.NewPoller(h.nets, time.Millisecond, 5),
		PayPalClientID: "client-abc",
	})
	return h
}

func newSession(userID int64) *session.Session {
	sess := &session.Session{
		ID:   "sess-1",
		Cart: json.RawMessage(`[{"id":"p1","name":"Milk","price":10.00,"quantity":3}]`),
	}
	if userID != 0 {
		sess.User = &session.User{ID: userID, Email: "alice@example.com", Name: "Alice Tan"}
	}
	return sess
}

func validForm(method string) Form {
	return Form{
		FullName:      "Alice Tan",
		Email:         "alice@example.com",
		Address:       "1 Orchard Rd",
		PaymentMethod: method,
	}
}

// ── synchronous checkout ─────────────────────────────────────────────────

func TestProcessCheckout_EmptyCart(t *testing.T) {
	h := newHarness(t)
	sess := &session.Session{ID: "sess-1", Cart: json.RawMessage(`[]`)}

	_, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("cash"))

	require.NotNil(t, ferr)
	require.Equal(t, "/checkout", ferr.Redirect)
	require.Equal(t, http.StatusBadRequest, ferr.Status)
}

func TestProcessCheckout_MissingFields(t *testing.T) {
	h := newHarness(t)

	form := validForm("cash")
	form.Address = "  "
	_, ferr := h.orc.ProcessCheckout(context.Background(), newSession(0), form)

	require.NotNil(t, ferr)
	require.Contains(t, ferr.Message, "complete all checkout fields")
	require.Equal(t, 10, h.stock.stock["p1"])
}

func TestProcessCheckout_RejectsUnknownAndAsyncMethods(t *testing.T) {
	h := newHarness(t)

	for _, method := range []string{"bitcoin", "nets", "paypal", ""} {
		_, ferr := h.orc.ProcessCheckout(context.Background(), newSession(0), validForm(method))
		require.NotNil(t, ferr, "method %q", method)
		require.Equal(t, "/checkout", ferr.Redirect)
	}
	require.Equal(t, 10, h.stock.stock["p1"])
}

func TestProcessCheckout_CashSuccess(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	outcome, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("cash"))

	require.Nil(t, ferr)
	require.Equal(t, "/invoice", outcome.Redirect)
	require.NotEmpty(t, outcome.InvoiceNumber)

	// Stock reserved, order recorded everywhere, carts cleared.
	require.Equal(t, 7, h.stock.stock["p1"])
	require.NotNil(t, sess.LastOrder)
	require.Equal(t, order.PaymentCashOnDelivery, sess.LastOrder.PaymentStatus)
	require.Equal(t, order.StatusProcessing, sess.LastOrder.ShippingStatus)
	require.Equal(t, 39.70, sess.LastOrder.Total)
	require.Len(t, sess.OrderHistory, 1)
	require.Len(t, h.orders.HistoryFor(1, ""), 1)
	require.Equal(t, []int64{1}, h.carts.cleared)
	require.JSONEq(t, "[]", string(sess.Cart))

	// The success flash is queued for the next render.
	require.Len(t, sess.Flashes, 1)
	require.Equal(t, "success", sess.Flashes[0].Kind)
}

func TestProcessCheckout_PayNowRedirectsWithPayload(t *testing.T) {
	h := newHarness(t)
	sess := newSession(0)

	outcome, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("paynow"))

	require.Nil(t, ferr)
	require.Equal(t, "/paynow", outcome.Redirect)
	require.True(t, sess.PendingPayNow)
	require.NotNil(t, sess.LastOrder.PayNow)
	require.Contains(t, sess.LastOrder.PayNow.Payload, "PAYNOW|INV:"+outcome.InvoiceNumber)
	require.Contains(t, sess.LastOrder.PayNow.Payload, "AMT:39.70")
}

func TestProcessCheckout_WalletShortBalanceLeavesStockAlone(t *testing.T) {
	h := newHarness(t)
	h.wallets.balances[1] = 5.00
	sess := newSession(1)

	_, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("wallet"))

	require.NotNil(t, ferr)
	require.Equal(t, "/checkout", ferr.Redirect)
	require.Equal(t, http.StatusPaymentRequired, ferr.Status)
	require.Contains(t, ferr.Message, "Insufficient wallet balance")

	// The pre-check ran before any stock was touched.
	require.Equal(t, 10, h.stock.stock["p1"])
	require.Equal(t, 5.00, h.wallets.balances[1])
	require.Nil(t, sess.LastOrder)
}

func TestProcessCheckout_WalletSuccessDebitsBalance(t *testing.T) {
	h := newHarness(t)
	h.wallets.balances[1] = 50.00
	sess := newSession(1)

	outcome, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("wallet"))

	require.Nil(t, ferr)
	require.Equal(t, "/invoice", outcome.Redirect)
	require.InDelta(t, 10.30, h.wallets.balances[1], 0.001)
	require.Equal(t, order.PaymentPaid, sess.LastOrder.PaymentStatus)
}

func TestProcessCheckout_WalletRequiresLogin(t *testing.T) {
	h := newHarness(t)

	_, ferr := h.orc.ProcessCheckout(context.Background(), newSession(0), validForm("wallet"))

	require.NotNil(t, ferr)
	require.Equal(t, http.StatusUnauthorized, ferr.Status)
	require.Equal(t, 10, h.stock.stock["p1"])
}

func TestProcessCheckout_InsufficientStock(t *testing.T) {
	h := newHarness(t)
	h.stock.stock["p1"] = 2
	sess := newSession(0)

	_, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("cash"))

	require.NotNil(t, ferr)
	require.Equal(t, "/cart", ferr.Redirect)
	require.Equal(t, http.StatusConflict, ferr.Status)
	require.Equal(t, "Not enough stock for Milk. Available: 2, requested: 3.", ferr.Message)
	require.Equal(t, 2, h.stock.stock["p1"])
	require.Nil(t, sess.LastOrder)
}

func TestProcessCheckout_CardValidationBouncesBack(t *testing.T) {
	h := newHarness(t)
	sess := newSession(0)

	form := validForm("card")
	_, ferr := h.orc.ProcessCheckout(context.Background(), sess, form)

	require.NotNil(t, ferr)
	require.Equal(t, "/checkout", ferr.Redirect)
	require.Contains(t, ferr.Message, "Please enter your card number")
}

func TestProcessCheckout_SavedCardNotFound(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	form := validForm("card")
	form.SavedPaymentMethod = 42
	_, ferr := h.orc.ProcessCheckout(context.Background(), sess, form)

	require.NotNil(t, ferr)
	require.Equal(t, "Saved card not found. Please re-enter card details.", ferr.Message)
}

func TestProcessCheckout_SaveCardOptInPersistsAndCaches(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	form := validForm("card")
	form.CardNumber = "4111 1111 1111 1111"
	form.CardExpiry = "12/27"
	form.CardCVV = "123"
	form.SaveCard = true

	outcome, ferr := h.orc.ProcessCheckout(context.Background(), sess, form)

	require.Nil(t, ferr)
	require.Equal(t, "/invoice", outcome.Redirect)
	require.Equal(t, "1111", sess.LastOrder.Customer.CardLast4)
	require.Len(t, h.cards.byID, 1)
	require.Len(t, sess.SavedCardsCache, 1)
	require.Equal(t, "1111", sess.SavedCardsCache[0].Last4)
}

// ── checkout page ────────────────────────────────────────────────────────

func TestRenderCheckout_EmptyCartRedirects(t *testing.T) {
	h := newHarness(t)
	sess := &session.Session{ID: "sess-1"}

	_, ferr := h.orc.RenderCheckout(context.Background(), sess)

	require.NotNil(t, ferr)
	require.Equal(t, "/cart", ferr.Redirect)
}

func TestRenderCheckout_ViewModel(t *testing.T) {
	h := newHarness(t)
	h.wallets.balances[1] = 25.00
	_, err := h.cards.Save(context.Background(), cards.Card{UserID: 1, Last4: "4242"})
	require.NoError(t, err)
	sess := newSession(1)

	view, ferr := h.orc.RenderCheckout(context.Background(), sess)

	require.Nil(t, ferr)
	require.Len(t, view.CartItems, 1)
	require.Equal(t, 39.70, view.Totals.Total)
	require.Equal(t, 25.00, view.WalletBalance)
	require.Len(t, view.SavedCards, 1)
	require.Equal(t, "client-abc", view.PayPalClientID)

	// The session cart was rewritten into the canonical shape.
	require.JSONEq(t,
		`[{"id":"p1","name":"Milk","price":10,"quantity":3,"subtotal":30}]`,
		string(sess.Cart))
}

// ── PayNow page gate ─────────────────────────────────────────────────────

func TestRenderPayNow_OneShotGate(t *testing.T) {
	h := newHarness(t)
	sess := newSession(0)

	_, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("paynow"))
	require.Nil(t, ferr)
	sess.ConsumeFlashes()

	view, ferr := h.orc.RenderPayNow(context.Background(), sess)
	require.Nil(t, ferr)
	require.NotNil(t, view.Order.PayNow)
	require.False(t, sess.PendingPayNow)

	// A second direct visit falls back to the invoice.
	_, ferr = h.orc.RenderPayNow(context.Background(), sess)
	require.NotNil(t, ferr)
	require.Equal(t, "/invoice", ferr.Redirect)
	require.Equal(t, http.StatusSeeOther, ferr.Status)
}

func TestRenderPayNow_NoOrder(t *testing.T) {
	h := newHarness(t)

	_, ferr := h.orc.RenderPayNow(context.Background(), &session.Session{ID: "sess-1"})

	require.NotNil(t, ferr)
	require.Equal(t, "/checkout", ferr.Redirect)
}

// ── NETS flow ────────────────────────────────────────────────────────────

func TestStartNetsCheckout_StagesPending(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	start, ferr := h.orc.StartNetsCheckout(context.Background(), sess, validForm(""))

	require.Nil(t, ferr)
	require.Equal(t, "base64-qr", start.QRCode)
	require.Equal(t, "ref-1", start.RetrievalRef)
	require.Equal(t, "39.70", start.Amount)
	require.NotEmpty(t, sess.PendingNetsToken)

	pending, err := h.sessions.Pending(context.Background(), sess.PendingNetsToken)
	require.NoError(t, err)
	require.Equal(t, start.InvoiceNumber, pending.InvoiceNumber)
	require.Equal(t, "ref-1", pending.NetsRetrievalRef)

	// Nothing is reserved or persisted until confirmation.
	require.Equal(t, 10, h.stock.stock["p1"])
	require.Nil(t, sess.LastOrder)
}

func TestConfirmNetsPayment_SuccessFinalizesOnce(t *testing.T) {
	h := newHarness(t)
	h.nets.statuses = []*nets.StatusResponse{
		{ResponseCode: "09", TxnStatus: 0},
		{ResponseCode: nets.ResponseCodeSuccess, TxnStatus: nets.TxnStatusSuccess},
	}
	sess := newSession(1)

	_, ferr := h.orc.StartNetsCheckout(context.Background(), sess, validForm(""))
	require.Nil(t, ferr)
	token := sess.PendingNetsToken

	var events []nets.Event
	h.orc.ConfirmNetsPayment(context.Background(), sess, func(e nets.Event) { events = append(events, e) })

	require.Equal(t, "success", events[len(events)-1].Stage)
	require.Equal(t, 7, h.stock.stock["p1"])
	require.NotNil(t, sess.LastOrder)
	require.Equal(t, order.PaymentPaid, sess.LastOrder.PaymentStatus)
	require.Empty(t, sess.PendingNetsToken)

	// The staged checkout was consumed.
	_, err := h.sessions.Pending(context.Background(), token)
	require.ErrorIs(t, err, session.ErrPendingNotFound)
}

func TestConfirmNetsPayment_FailureDoesNotPersist(t *testing.T) {
	h := newHarness(t)
	h.nets.statuses = []*nets.StatusResponse{
		{ResponseCode: "09", TxnStatus: nets.TxnStatusFailure},
	}
	sess := newSession(1)

	_, ferr := h.orc.StartNetsCheckout(context.Background(), sess, validForm(""))
	require.Nil(t, ferr)

	var events []nets.Event
	h.orc.ConfirmNetsPayment(context.Background(), sess, func(e nets.Event) { events = append(events, e) })

	require.Equal(t, "failure", events[len(events)-1].Stage)
	require.Equal(t, 10, h.stock.stock["p1"])
	require.Nil(t, sess.LastOrder)
}

func TestConfirmNetsPayment_NoPendingOrder(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	var events []nets.Event
	h.orc.ConfirmNetsPayment(context.Background(), sess, func(e nets.Event) { events = append(events, e) })

	require.Len(t, events, 1)
	require.Equal(t, "failure", events[0].Stage)
	require.Contains(t, events[0].Message, "No pending NETS QR order")
}

func TestConfirmNetsPayment_RefreshAfterCompletion(t *testing.T) {
	h := newHarness(t)
	h.nets.statuses = []*nets.StatusResponse{
		{ResponseCode: nets.ResponseCodeSuccess, TxnStatus: nets.TxnStatusSuccess},
	}
	sess := newSession(1)

	_, ferr := h.orc.StartNetsCheckout(context.Background(), sess, validForm(""))
	require.Nil(t, ferr)
	h.orc.ConfirmNetsPayment(context.Background(), sess, func(nets.Event) {})
	require.NotNil(t, sess.LastOrder)

	// A page refresh re-opens the stream; the completed order answers it.
	var events []nets.Event
	h.orc.ConfirmNetsPayment(context.Background(), sess, func(e nets.Event) { events = append(events, e) })

	require.Len(t, events, 1)
	require.Equal(t, "success", events[0].Stage)
	require.Equal(t, 7, h.stock.stock["p1"], "stock must not be reserved twice")
}

// ── PayPal flow ──────────────────────────────────────────────────────────

func TestCreatePayPalOrder_StagesExactAmount(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	id, ferr := h.orc.CreatePayPalOrder(context.Background(), sess, validForm(""))

	require.Nil(t, ferr)
	require.Equal(t, "remote-1", id)
	require.Equal(t, []string{"39.70"}, h.paypal.created)
	require.NotEmpty(t, sess.PendingPayPalToken)
	require.Equal(t, 10, h.stock.stock["p1"])
}

func TestCapturePayPalOrder_CompletedPersists(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	_, ferr := h.orc.CreatePayPalOrder(context.Background(), sess, validForm(""))
	require.Nil(t, ferr)

	outcome, ferr := h.orc.CapturePayPalOrder(context.Background(), sess, "remote-1")

	require.Nil(t, ferr)
	require.Equal(t, "/invoice", outcome.Redirect)
	require.Equal(t, 7, h.stock.stock["p1"])
	require.NotNil(t, sess.LastOrder)
	require.NotNil(t, sess.LastOrder.PayPal)
	require.Equal(t, paypal.StatusCompleted, sess.LastOrder.PayPal.Status)
	require.Empty(t, sess.PendingPayPalToken)
}

func TestCapturePayPalOrder_NonCompletedStatusFails(t *testing.T) {
	h := newHarness(t)
	h.paypal.captures["remote-1"] = &paypal.CaptureResult{OrderID: "remote-1", Status: "DECLINED"}
	sess := newSession(1)

	_, ferr := h.orc.CreatePayPalOrder(context.Background(), sess, validForm(""))
	require.Nil(t, ferr)

	_, ferr = h.orc.CapturePayPalOrder(context.Background(), sess, "remote-1")

	require.NotNil(t, ferr)
	require.Equal(t, http.StatusBadRequest, ferr.Status)
	require.Equal(t, "PayPal capture status: DECLINED", ferr.Message)
	require.Equal(t, 10, h.stock.stock["p1"])
	require.Nil(t, sess.LastOrder)
}

func TestCapturePayPalOrder_MissingOrMismatchedID(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	_, ferr := h.orc.CapturePayPalOrder(context.Background(), sess, "")
	require.NotNil(t, ferr)
	require.Equal(t, "Missing PayPal order ID.", ferr.Message)

	_, ferr = h.orc.CreatePayPalOrder(context.Background(), sess, validForm(""))
	require.Nil(t, ferr)

	_, ferr = h.orc.CapturePayPalOrder(context.Background(), sess, "someone-elses-order")
	require.NotNil(t, ferr)
	require.Contains(t, ferr.Message, "No pending PayPal checkout")
}

// ── order history and cancellation ───────────────────────────────────────

func TestCancelOrder_Lifecycle(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	outcome, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("cash"))
	require.Nil(t, ferr)
	sess.ConsumeFlashes()

	require.Nil(t, h.orc.CancelOrder(context.Background(), sess, outcome.InvoiceNumber))
	require.Equal(t, order.StatusCancelled, sess.LastOrder.ShippingStatus)
	require.Equal(t, order.StatusCancelled, h.orders.HistoryFor(1, "")[0].ShippingStatus)

	// Cancelling again is refused.
	ferr = h.orc.CancelOrder(context.Background(), sess, outcome.InvoiceNumber)
	require.NotNil(t, ferr)
	require.Equal(t, http.StatusConflict, ferr.Status)
	require.Contains(t, ferr.Message, "already cancelled")
}

func TestCancelOrder_DeliveredRefused(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	outcome, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("cash"))
	require.Nil(t, ferr)
	require.True(t, h.orc.SetOrderStatus(outcome.InvoiceNumber, order.StatusDelivered, order.KindShipping))

	ferr = h.orc.CancelOrder(context.Background(), sess, outcome.InvoiceNumber)
	require.NotNil(t, ferr)
	require.Contains(t, ferr.Message, "Delivered orders cannot be cancelled")
}

func TestCancelOrder_UnknownInvoice(t *testing.T) {
	h := newHarness(t)

	ferr := h.orc.CancelOrder(context.Background(), newSession(1), "INV-MISSING")

	require.NotNil(t, ferr)
	require.Equal(t, http.StatusNotFound, ferr.Status)
}

func TestOrderHistory_MergesSessionAndStore(t *testing.T) {
	h := newHarness(t)
	sess := newSession(1)

	first, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("cash"))
	require.Nil(t, ferr)
	sess.Cart = json.RawMessage(`[{"id":"p2","name":"Bread","price":2.00,"quantity":1}]`)
	second, ferr := h.orc.ProcessCheckout(context.Background(), sess, validForm("cash"))
	require.Nil(t, ferr)

	history := h.orc.OrderHistory(sess)
	require.Len(t, history, 2)
	require.Equal(t, second.InvoiceNumber, history[0].InvoiceNumber)
	require.Equal(t, first.InvoiceNumber, history[1].InvoiceNumber)
}

func TestRenderInvoice_RederivesMissingTotals(t *testing.T) {
	h := newHarness(t)
	sess := newSession(0)
	sess.LastOrder = &order.Record{
		InvoiceNumber: "INV-LEGACY",
		Customer:      order.Customer{PaymentMethod: string(payment.MethodCash)},
		CartItems: []cart.LineItem{
			{ProductID: "p1", Name: "Milk", UnitPrice: 10.00, Quantity: 3},
		},
	}

	view, ferr := h.orc.RenderInvoice(sess)

	require.Nil(t, ferr)
	require.Equal(t, 39.70, view.Totals.Total)
}

func TestRenderInvoice_NoOrder(t *testing.T) {
	h := newHarness(t)

	_, ferr := h.orc.RenderInvoice(&session.Session{ID: "sess-1"})

	require.NotNil(t, ferr)
	require.Equal(t, http.StatusNotFound, ferr.Status)
	require.Equal(t, "/cart", ferr.Redirect)
}
