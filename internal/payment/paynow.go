package payment

import (
	"context"

	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/pricing"
)

// PayNowStrategy confirms immediately with a structured payment string the
// user scans and pays out-of-band. No external verification happens here.
type PayNowStrategy struct{}

func (PayNowStrategy) Method() Method { return MethodPayNow }

func (PayNowStrategy) Confirm(_ context.Context, invoiceNumber string, totals pricing.Totals,
	customer order.Customer, _ Request) (Confirmation, error) {
	return Confirmation{
		PaymentStatus: order.PaymentPaid,
		PayNow:        order.BuildPayNowPayload(invoiceNumber, totals.Total, customer),
	}, nil
}
