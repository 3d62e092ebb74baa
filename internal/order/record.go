// Package order assembles immutable order records and maintains the
// bounded per-user histories and the global recent-orders feed.
package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/supermartsg/checkout/internal/cart"
	"github.com/supermartsg/checkout/internal/pricing"
)

// Shipping status values. SetStatus accepts free-form admin strings; these
// are the ones the lifecycle rules care about.
const (
	StatusProcessing = "Processing"
	StatusCancelled  = "Cancelled"
	StatusDelivered  = "Delivered"
)

// Payment status values.
const (
	PaymentPaid           = "Paid"
	PaymentCashOnDelivery = "Cash on Delivery"
)

// Customer is the checkout-time snapshot of the buyer. The card suffix is
// the only card data that survives checkout.
type Customer struct {
	UserID        int64  `json:"userId,omitempty"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Address       string `json:"address"`
	PaymentMethod string `json:"paymentMethod"`
	CardLast4     string `json:"cardLast4,omitempty"`
}

// PayNowPayload is the structured payment string displayed for the user to
// scan and pay out-of-band.
type PayNowPayload struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Payload   string `json:"payload"`
}

// PayPalPayload records the remote capture that confirmed payment.
type PayPalPayload struct {
	OrderID    string `json:"orderId"`
	CaptureID  string `json:"captureId,omitempty"`
	Status     string `json:"status"`
	PayerEmail string `json:"payerEmail,omitempty"`
}

// Record is the immutable record of a completed purchase. CartItems and the
// embedded totals never change after construction; only the status fields
// and their timestamps do.
type Record struct {
	InvoiceNumber string         `json:"invoiceNumber"`
	Customer      Customer       `json:"customer"`
	PayNow        *PayNowPayload `json:"paynow,omitempty"`
	PayPal        *PayPalPayload `json:"paypal,omitempty"`

	ShippingStatus    string    `json:"shippingStatus"`
	ShippingUpdatedAt time.Time `json:"shippingUpdatedAt"`
	PaymentStatus     string    `json:"paymentStatus"`
	PaymentUpdatedAt  time.Time `json:"paymentUpdatedAt"`

	CartItems []cart.LineItem `json:"cartItems"`
	pricing.Totals
	PlacedAt time.Time `json:"placedAt"`
}

// NewInvoiceNumber derives an invoice number from the creation timestamp
// plus a random suffix, so concurrent checkouts within the same millisecond
// window cannot collide.
func NewInvoiceNumber() string {
	ts := fmt.Sprintf("%d", time.Now().UnixMilli())
	if len(ts) > 8 {
		ts = ts[len(ts)-8:]
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("INV-%s-%s", ts, suffix)
}

// BuildPayNowPayload formats the PayNow payment string for an invoice.
func BuildPayNowPayload(invoiceNumber string, total float64, customer Customer) *PayNowPayload {
	amount := fmt.Sprintf("%.2f", total)

	parts := []string{"PAYNOW", "INV:" + invoiceNumber, "AMT:" + amount}
	if customer.FullName != "" {
		parts = append(parts, "NAME:"+customer.FullName)
	}
	if customer.Email != "" {
		parts = append(parts, "EMAIL:"+customer.Email)
	}

	return &PayNowPayload{
		Reference: invoiceNumber,
		Amount:    amount,
		Payload:   strings.Join(parts, "|"),
	}
}

// Build constructs a record with initial status fields and timestamps.
// Pure construction; persistence is the store's job.
func Build(items []cart.LineItem, totals pricing.Totals, invoiceNumber string,
	customer Customer, paymentStatus string, paynow *PayNowPayload, paypal *PayPalPayload) Record {

	if paymentStatus == "" {
		paymentStatus = PaymentPaid
	}
	now := time.Now().UTC()
	return Record{
		InvoiceNumber:     invoiceNumber,
		Customer:          customer,
		PayNow:            paynow,
		PayPal:            paypal,
		ShippingStatus:    StatusProcessing,
		ShippingUpdatedAt: now,
		PaymentStatus:     paymentStatus,
		PaymentUpdatedAt:  now,
		CartItems:         cloneItems(items),
		Totals:            totals,
		PlacedAt:          now,
	}
}

// CanCancel reports whether a user-initiated cancellation is allowed.
func CanCancel(rec Record) error {
	current := strings.ToLower(rec.ShippingStatus)
	if strings.Contains(current, "cancel") {
		return fmt.Errorf("order %s is already cancelled", rec.InvoiceNumber)
	}
	if strings.Contains(current, "deliver") {
		return fmt.Errorf("order %s has been delivered and cannot be cancelled", rec.InvoiceNumber)
	}
	return nil
}

func cloneItems(items []cart.LineItem) []cart.LineItem {
	out := make([]cart.LineItem, len(items))
	copy(out, items)
	return out
}

func cloneRecord(rec Record) Record {
	clone := rec
	clone.CartItems = cloneItems(rec.CartItems)
	if rec.PayNow != nil {
		p := *rec.PayNow
		clone.PayNow = &p
	}
	if rec.PayPal != nil {
		p := *rec.PayPal
		clone.PayPal = &p
	}
	return clone
}
