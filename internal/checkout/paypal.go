package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/payment"
	"github.com/supermartsg/checkout/internal/payment/paypal"
	"github.com/supermartsg/checkout/internal/pricing"
	"github.com/supermartsg/checkout/internal/session"
)

// CreatePayPalOrder creates the remote order for the computed total and
// stages the checkout. The staged totals are what capture later charges;
// nothing is recomputed between create and capture. Stock is not touched.
func (o *Orchestrator) CreatePayPalOrder(ctx context.Context, sess *session.Session, form Form) (string, *FlowError) {
	items := o.normalizeCart(sess)
	if len(items) == 0 {
		return "", flowErr("Your cart is empty.", "/checkout", http.StatusBadRequest, nil)
	}
	if ferr := validateRequired(form, false); ferr != nil {
		return "", flowErr("Please complete all checkout fields before paying with PayPal.",
			"/checkout", http.StatusBadRequest, nil)
	}

	totals := pricing.Calculate(items)
	invoiceNumber := order.NewInvoiceNumber()
	customer := order.Customer{
		UserID:        sess.UserID(),
		FullName:      form.FullName,
		Email:         form.Email,
		Address:       form.Address,
		PaymentMethod: string(payment.MethodPayPal),
	}

	remoteID, err := o.paypal.CreateOrder(ctx, fmt.Sprintf("%.2f", totals.Total), invoiceNumber)
	if err != nil {
		slog.ErrorContext(ctx, "paypal create order failed", "invoice", invoiceNumber, "error", err)
		return "", flowErr("Unable to start PayPal checkout.", "/checkout", http.StatusInternalServerError, err)
	}

	pending := session.NewPendingCheckout(invoiceNumber, customer, items, totals)
	pending.PayPalOrderID = remoteID
	if err := o.sessions.StagePending(ctx, pending); err != nil {
		return "", flowErr("Unable to start PayPal checkout.", "/checkout", http.StatusInternalServerError, err)
	}

	sess.PendingPayPalToken = pending.Token
	if err := o.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "session save after paypal staging failed", "session_id", sess.ID, "error", err)
	}
	return remoteID, nil
}

// CapturePayPalOrder captures the remote order and, only when the capture
// status is COMPLETED, reserves stock and persists the staged order.
func (o *Orchestrator) CapturePayPalOrder(ctx context.Context, sess *session.Session, paypalOrderID string) (Outcome, *FlowError) {
	if paypalOrderID == "" {
		return Outcome{}, flowErr("Missing PayPal order ID.", "/checkout", http.StatusBadRequest, nil)
	}

	pending, err := o.sessions.Pending(ctx, sess.PendingPayPalToken)
	if err != nil || len(pending.CartItems) == 0 {
		return Outcome{}, flowErr("No pending PayPal checkout found.", "/checkout", http.StatusBadRequest, err)
	}
	if pending.PayPalOrderID != paypalOrderID {
		return Outcome{}, flowErr("No pending PayPal checkout found.", "/checkout", http.StatusBadRequest,
			errors.New("paypal order id does not match the staged checkout"))
	}

	capture, err := o.paypal.CaptureOrder(ctx, paypalOrderID)
	if err != nil {
		slog.ErrorContext(ctx, "paypal capture failed", "paypal_order_id", paypalOrderID, "error", err)
		return Outcome{}, flowErr("Unable to capture PayPal payment.", "/checkout", http.StatusInternalServerError, err)
	}
	if capture.Status != paypal.StatusCompleted {
		return Outcome{}, flowErr(fmt.Sprintf("PayPal capture status: %s", capture.Status),
			"/checkout", http.StatusBadRequest, nil)
	}

	// Capture succeeded; consume the staged checkout so it finalizes once.
	pending, err = o.sessions.TakePending(ctx, sess.PendingPayPalToken)
	if err != nil {
		return Outcome{}, flowErr("No pending PayPal checkout found.", "/checkout", http.StatusBadRequest, err)
	}

	if ferr := o.reserveStock(ctx, pending.CartItems); ferr != nil {
		return Outcome{}, ferr
	}

	rec := order.Build(pending.CartItems, pending.Totals, pending.InvoiceNumber,
		pending.Customer, order.PaymentPaid, nil, &order.PayPalPayload{
			OrderID:    capture.OrderID,
			CaptureID:  capture.CaptureID,
			Status:     capture.Status,
			PayerEmail: capture.PayerEmail,
		})
	o.persistOrder(ctx, sess, rec)
	sess.PendingPayPalToken = ""
	sess.AddFlash("success", fmt.Sprintf("Order placed! An invoice has been generated for %s.", pending.Customer.Email))
	if err := o.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "session save after paypal capture failed", "session_id", sess.ID, "error", err)
	}

	return Outcome{Redirect: "/invoice", InvoiceNumber: pending.InvoiceNumber}, nil
}
