package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/payment"
	"github.com/supermartsg/checkout/internal/payment/nets"
	"github.com/supermartsg/checkout/internal/pricing"
	"github.com/supermartsg/checkout/internal/session"
)

// NetsStart is the result of staging a NETS QR checkout.
type NetsStart struct {
	InvoiceNumber string `json:"invoiceNumber"`
	QRCode        string `json:"qrCode"`
	RetrievalRef  string `json:"retrievalRef"`
	Amount        string `json:"amount"`
}

// StartNetsCheckout stages the pending checkout and requests a QR code
// from the gateway. No stock is reserved and no order is persisted yet;
// both happen on a successful poll in ConfirmNetsPayment.
func (o *Orchestrator) StartNetsCheckout(ctx context.Context, sess *session.Session, form Form) (*NetsStart, *FlowError) {
	items := o.normalizeCart(sess)
	if len(items) == 0 {
		return nil, flowErr("Your cart is empty. Add items before checking out.", "/checkout", http.StatusBadRequest, nil)
	}
	if ferr := validateRequired(form, false); ferr != nil {
		return nil, &FlowError{
			Message:  "Please complete all checkout fields before paying with NETS QR.",
			Redirect: "/checkout",
			Status:   http.StatusBadRequest,
		}
	}

	totals := pricing.Calculate(items)
	invoiceNumber := order.NewInvoiceNumber()
	customer := order.Customer{
		UserID:        sess.UserID(),
		FullName:      form.FullName,
		Email:         form.Email,
		Address:       form.Address,
		PaymentMethod: string(payment.MethodNets),
	}

	qr, err := o.nets.RequestQRCode(ctx, totals.Total, invoiceNumber)
	if err != nil {
		slog.ErrorContext(ctx, "nets qr request failed", "invoice", invoiceNumber, "error", err)
		return nil, flowErr("Unable to start NETS QR checkout. Please try again.", "/checkout", http.StatusBadGateway, err)
	}

	pending := session.NewPendingCheckout(invoiceNumber, customer, items, totals)
	pending.NetsRetrievalRef = qr.TxnRetrievalRef
	if err := o.sessions.StagePending(ctx, pending); err != nil {
		return nil, flowErr("Unable to start NETS QR checkout. Please try again.", "/checkout", http.StatusInternalServerError, err)
	}

	sess.PendingNetsToken = pending.Token
	if err := o.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "session save after nets staging failed", "session_id", sess.ID, "error", err)
	}

	return &NetsStart{
		InvoiceNumber: invoiceNumber,
		QRCode:        qr.QRCode,
		RetrievalRef:  qr.TxnRetrievalRef,
		Amount:        fmt.Sprintf("%.2f", totals.Total),
	}, nil
}

// ConfirmNetsPayment drives the long-lived status stream for a staged NETS
// checkout, emitting every poll response through emit. On the gateway's
// success status it finalizes the staged order exactly once — the pending
// record is consumed atomically first — then ends the stream with a
// success event. Failure and timeout end the stream with their own events.
// The poller stops immediately when ctx is cancelled by a disconnect.
func (o *Orchestrator) ConfirmNetsPayment(ctx context.Context, sess *session.Session, emit func(nets.Event)) {
	token := sess.PendingNetsToken
	pending, err := o.sessions.Pending(ctx, token)
	if err != nil {
		// A refresh after a completed NETS checkout lands here; treat a
		// matching last order as already confirmed.
		if last := sess.LastOrder; last != nil && last.Customer.PaymentMethod == string(payment.MethodNets) {
			emit(nets.Event{Stage: "success", Message: "Transaction Successful!"})
			return
		}
		emit(nets.Event{Stage: "failure", Message: "No pending NETS QR order found. Please checkout again."})
		return
	}

	outcome := o.poller.Poll(ctx, pending.NetsRetrievalRef, emit)
	switch outcome {
	case nets.OutcomeSuccess:
		o.finalizeNets(ctx, sess, token, emit)
	case nets.OutcomeCancelled:
		slog.InfoContext(ctx, "nets status stream cancelled by client",
			"invoice", pending.InvoiceNumber)
	}
	// Failure and timeout events were already emitted by the poller.
}

// finalizeNets consumes the staged checkout and re-runs stock reservation
// and order persistence for the staged data.
func (o *Orchestrator) finalizeNets(ctx context.Context, sess *session.Session, token string, emit func(nets.Event)) {
	pending, err := o.sessions.TakePending(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrPendingNotFound) {
			// Another stream already finalized this checkout.
			emit(nets.Event{Stage: "success", Message: "Transaction Successful!"})
			return
		}
		emit(nets.Event{Stage: "failure", Message: "Unable to finalize your NETS order. Please contact support."})
		return
	}

	if ferr := o.reserveStock(ctx, pending.CartItems); ferr != nil {
		slog.ErrorContext(ctx, "nets finalization stock reservation failed",
			"invoice", pending.InvoiceNumber, "error", ferr.Err)
		emit(nets.Event{Stage: "failure", Message: ferr.Message})
		return
	}

	rec := order.Build(pending.CartItems, pending.Totals, pending.InvoiceNumber,
		pending.Customer, order.PaymentPaid, nil, nil)
	o.persistOrder(ctx, sess, rec)
	sess.PendingNetsToken = ""
	sess.AddFlash("success", fmt.Sprintf("Order placed! An invoice has been generated for %s.", pending.Customer.Email))
	if err := o.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "session save after nets finalization failed", "session_id", sess.ID, "error", err)
	}

	emit(nets.Event{Stage: "success", Message: "Transaction Successful!"})
}
