package checkout

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/payment"
	"github.com/supermartsg/checkout/internal/pricing"
	"github.com/supermartsg/checkout/internal/session"
)

// OrderView is an order plus totals guaranteed to be populated, for the
// invoice and PayNow pages.
type OrderView struct {
	Order  order.Record   `json:"order"`
	Totals pricing.Totals `json:"totals"`
}

// RenderInvoice returns the most recent order. Orders stored without total
// fields get them re-derived from their line items.
func (o *Orchestrator) RenderInvoice(sess *session.Session) (*OrderView, *FlowError) {
	last := sess.LastOrder
	if last == nil || len(last.CartItems) == 0 {
		return nil, flowErr("No recent order found. Complete a checkout first.", "/cart", http.StatusNotFound, nil)
	}

	rec := *last
	if rec.Customer.PaymentMethod == string(payment.MethodPayNow) && rec.PayNow == nil {
		rec.PayNow = order.BuildPayNowPayload(rec.InvoiceNumber, rec.Total, rec.Customer)
	}

	return &OrderView{Order: rec, Totals: viewTotals(rec)}, nil
}

// RenderPayNow shows the PayNow payment payload for the last order. Direct
// navigation without a just-completed PayNow checkout falls back to the
// invoice; the pending flag is one-shot.
func (o *Orchestrator) RenderPayNow(ctx context.Context, sess *session.Session) (*OrderView, *FlowError) {
	last := sess.LastOrder
	if last == nil || len(last.CartItems) == 0 {
		return nil, flowErr("No PayNow order found. Please checkout again.", "/checkout", http.StatusNotFound, nil)
	}
	if last.Customer.PaymentMethod != string(payment.MethodPayNow) || !sess.PendingPayNow {
		return nil, flowErr("", "/invoice", http.StatusSeeOther, nil)
	}

	sess.PendingPayNow = false
	if err := o.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "session save after paynow render failed", "session_id", sess.ID, "error", err)
	}

	rec := *last
	if rec.PayNow == nil {
		rec.PayNow = order.BuildPayNowPayload(rec.InvoiceNumber, rec.Total, rec.Customer)
	}
	return &OrderView{Order: rec, Totals: viewTotals(rec)}, nil
}

// OrderHistory merges the user's durable history, session history and
// matching feed entries, most recent first.
func (o *Orchestrator) OrderHistory(sess *session.Session) []order.Record {
	return o.orders.MergeForUser(sess.UserID(), sess.UserEmail(), sess.OrderHistory)
}

// RecentOrders returns the newest orders across all users.
func (o *Orchestrator) RecentOrders(limit int) []order.Record {
	return o.orders.Recent(limit)
}

// SetOrderStatus updates the shipping or payment status of every stored
// occurrence of an order. Reports whether anything matched.
func (o *Orchestrator) SetOrderStatus(invoiceNumber, status string, kind order.StatusKind) bool {
	return o.orders.SetStatus(invoiceNumber, status, kind)
}

// CancelOrder transitions a completed order's shipping status to Cancelled,
// permitted only while it is neither cancelled nor delivered.
func (o *Orchestrator) CancelOrder(ctx context.Context, sess *session.Session, invoiceNumber string) *FlowError {
	var target *order.Record
	for _, rec := range o.OrderHistory(sess) {
		if rec.InvoiceNumber == invoiceNumber {
			target = &rec
			break
		}
	}
	if target == nil {
		return flowErr("Order not found in your history.", "/orders", http.StatusNotFound, nil)
	}

	if err := order.CanCancel(*target); err != nil {
		return flowErr(cancelDenialMessage(*target), "/orders", http.StatusConflict, err)
	}

	if !o.orders.SetStatus(invoiceNumber, order.StatusCancelled, order.KindShipping) {
		return flowErr("Unable to cancel this order right now.", "/orders", http.StatusInternalServerError, nil)
	}

	// Session copies are separate from the store; cancel them too.
	applySessionCancel(sess, invoiceNumber)
	sess.AddFlash("success", "Order cancelled successfully.")
	if err := o.sessions.Save(ctx, sess); err != nil {
		slog.ErrorContext(ctx, "session save after cancellation failed", "session_id", sess.ID, "error", err)
	}
	return nil
}

func cancelDenialMessage(rec order.Record) string {
	if err := order.CanCancel(rec); err == nil {
		return ""
	}
	switch {
	case containsFold(rec.ShippingStatus, "cancel"):
		return "This order is already cancelled."
	default:
		return "Delivered orders cannot be cancelled."
	}
}

func applySessionCancel(sess *session.Session, invoiceNumber string) {
	now := nowUTC()
	for i := range sess.OrderHistory {
		if sess.OrderHistory[i].InvoiceNumber == invoiceNumber {
			sess.OrderHistory[i].ShippingStatus = order.StatusCancelled
			sess.OrderHistory[i].ShippingUpdatedAt = now
		}
	}
	if sess.LastOrder != nil && sess.LastOrder.InvoiceNumber == invoiceNumber {
		sess.LastOrder.ShippingStatus = order.StatusCancelled
		sess.LastOrder.ShippingUpdatedAt = now
	}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func viewTotals(rec order.Record) pricing.Totals {
	if rec.Total > 0 {
		return rec.Totals
	}
	return pricing.Calculate(rec.CartItems)
}
