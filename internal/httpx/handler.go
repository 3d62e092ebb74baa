package httpx

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/supermartsg/checkout/internal/checkout"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/payment/nets"
	"github.com/supermartsg/checkout/internal/session"
	"github.com/supermartsg/checkout/internal/wallet"
)

// Handler exposes the checkout workflow over HTTP. Form-driven flows
// answer with a redirect payload plus flash messages, API flows with plain
// JSON, matching the storefront's two frontend styles.
type Handler struct {
	orc      *checkout.Orchestrator
	wallet   *wallet.Service
	sessions session.Store
}

func NewHandler(orc *checkout.Orchestrator, w *wallet.Service, sessions session.Store) *Handler {
	return &Handler{orc: orc, wallet: w, sessions: sessions}
}

// RenderCheckout returns the checkout page view-model.
func (h *Handler) RenderCheckout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	view, ferr := h.orc.RenderCheckout(r.Context(), sess)
	if ferr != nil {
		h.redirectWithFlash(w, r, sess, ferr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ProcessCheckout runs the synchronous checkout flow.
func (h *Handler) ProcessCheckout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	outcome, ferr := h.orc.ProcessCheckout(r.Context(), sess, form)
	if ferr != nil {
		h.redirectWithFlash(w, r, sess, ferr)
		return
	}
	writeJSON(w, http.StatusOK, RedirectResponse{
		OK:          true,
		RedirectURL: outcome.Redirect,
		Flashes:     sess.ConsumeFlashes(),
	})
}

// RenderInvoice returns the most recent order with totals.
func (h *Handler) RenderInvoice(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	view, ferr := h.orc.RenderInvoice(sess)
	if ferr != nil {
		h.redirectWithFlash(w, r, sess, ferr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RenderPayNow shows the PayNow payment payload, gated on a just-completed
// PayNow checkout.
func (h *Handler) RenderPayNow(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	view, ferr := h.orc.RenderPayNow(r.Context(), sess)
	if ferr != nil {
		h.redirectWithFlash(w, r, sess, ferr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// StartNetsCheckout stages a NETS QR checkout and returns the QR payload.
func (h *Handler) StartNetsCheckout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	start, ferr := h.orc.StartNetsCheckout(r.Context(), sess, form)
	if ferr != nil {
		h.redirectWithFlash(w, r, sess, ferr)
		return
	}
	writeJSON(w, http.StatusOK, start)
}

// NetsStatusStream streams poll results for the staged NETS checkout as
// server-sent events until a terminal status, the attempt budget, or a
// client disconnect ends it.
func (h *Handler) NetsStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sess := sessionFrom(r)
	h.orc.ConfirmNetsPayment(r.Context(), sess, func(event nets.Event) {
		raw, err := json.Marshal(event)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", raw)
		flusher.Flush()
	})
}

// CreatePayPalOrder starts the PayPal two-call protocol.
func (h *Handler) CreatePayPalOrder(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	id, ferr := h.orc.CreatePayPalOrder(r.Context(), sess, form)
	if ferr != nil {
		writeError(w, ferr.Status, "paypal_create_failed", ferr.Message)
		return
	}
	writeJSON(w, http.StatusOK, CreatePayPalOrderResponse{ID: id})
}

// CapturePayPalOrder finishes the PayPal flow.
func (h *Handler) CapturePayPalOrder(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.OrderID == "" {
		req.OrderID = chi.URLParam(r, "orderID")
	}

	outcome, ferr := h.orc.CapturePayPalOrder(r.Context(), sess, req.OrderID)
	if ferr != nil {
		writeError(w, ferr.Status, "paypal_capture_failed", ferr.Message)
		return
	}
	writeJSON(w, http.StatusOK, CaptureResponse{OK: true, RedirectURL: outcome.Redirect})
}

// OrderHistory lists the caller's merged order history.
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	orders := h.orc.OrderHistory(sess)
	flashes := sess.ConsumeFlashes()
	if len(flashes) > 0 {
		if err := h.sessions.Save(r.Context(), sess); err != nil {
			slog.ErrorContext(r.Context(), "session save failed", "session_id", sess.ID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, OrderListResponse{Orders: orders, Flashes: flashes})
}

// RecentOrders lists the newest orders across all users.
func (h *Handler) RecentOrders(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	writeJSON(w, http.StatusOK, OrderListResponse{Orders: h.orc.RecentOrders(limit)})
}

// CancelOrder transitions an order's shipping status to Cancelled.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	invoice := chi.URLParam(r, "invoice")

	if ferr := h.orc.CancelOrder(r.Context(), sess, invoice); ferr != nil {
		h.redirectWithFlash(w, r, sess, ferr)
		return
	}
	writeJSON(w, http.StatusOK, RedirectResponse{
		OK:          true,
		RedirectURL: "/orders",
		Flashes:     sess.ConsumeFlashes(),
	})
}

// SetOrderStatus is the admin status-update operation.
func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	invoice := chi.URLParam(r, "invoice")

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "status is required")
		return
	}

	kind := order.KindShipping
	if req.Kind == string(order.KindPayment) {
		kind = order.KindPayment
	}

	updated := h.orc.SetOrderStatus(invoice, req.Status, kind)
	status := http.StatusOK
	if !updated {
		status = http.StatusNotFound
	}
	writeJSON(w, status, StatusUpdateResponse{Updated: updated})
}

// TopUpWallet credits the caller's wallet.
func (h *Handler) TopUpWallet(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if sess.UserID() == 0 {
		writeError(w, http.StatusUnauthorized, "login_required", "Wallet top-ups require a logged-in account.")
		return
	}

	var req TopUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	balance, err := h.wallet.TopUp(r.Context(), sess.UserID(), req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "topup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, TopUpResponse{Balance: balance})
}

// redirectWithFlash queues the failure message and answers with the
// redirect payload form-driven frontends follow.
func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, sess *session.Session, ferr *checkout.FlowError) {
	if ferr.Message != "" {
		sess.AddFlash("error", ferr.Message)
	}
	flashes := sess.ConsumeFlashes()
	if err := h.sessions.Save(r.Context(), sess); err != nil {
		slog.ErrorContext(r.Context(), "session save failed", "session_id", sess.ID, "error", err)
	}
	writeJSON(w, ferr.Status, RedirectResponse{
		OK:          false,
		RedirectURL: ferr.Redirect,
		Flashes:     flashes,
	})
}

// decodeForm accepts either JSON or classic form encoding for the
// checkout fields.
func decodeForm(r *http.Request) (checkout.Form, error) {
	var form checkout.Form

	if r.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return form, fmt.Errorf("decode checkout form: %w", err)
		}
		return form, nil
	}

	if err := r.ParseForm(); err != nil {
		return form, fmt.Errorf("parse checkout form: %w", err)
	}
	form.FullName = r.PostFormValue("fullName")
	form.Email = r.PostFormValue("email")
	form.Address = r.PostFormValue("address")
	form.PaymentMethod = r.PostFormValue("paymentMethod")
	form.CardNumber = r.PostFormValue("cardNumber")
	form.CardExpiry = r.PostFormValue("cardExpiry")
	form.CardCVV = r.PostFormValue("cardCvv")
	form.CardName = r.PostFormValue("cardName")
	form.SaveCard = r.PostFormValue("saveCard") != ""
	if raw := r.PostFormValue("savedPaymentMethod"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			form.SavedPaymentMethod = id
		}
	}
	return form, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: msg})
}
