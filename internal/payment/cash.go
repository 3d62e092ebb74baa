package payment

import (
	"context"

	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/pricing"
)

// CashStrategy always succeeds; payment is collected on delivery.
type CashStrategy struct{}

func (CashStrategy) Method() Method { return MethodCash }

func (CashStrategy) Confirm(_ context.Context, _ string, _ pricing.Totals,
	_ order.Customer, _ Request) (Confirmation, error) {
	return Confirmation{PaymentStatus: order.PaymentCashOnDelivery}, nil
}
