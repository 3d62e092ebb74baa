// Package pricing derives order totals from a list of priced line items.
//
// All amounts are monetary values with two-decimal-cent precision. The
// arithmetic runs on decimals internally so that the invariant
// total = subtotal + gst + shipping holds exactly at cent granularity.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/supermartsg/checkout/internal/cart"
)

const (
	// GSTRate is the Singapore goods-and-services tax applied to the subtotal.
	GSTRate = 0.09

	// FreeShippingThreshold is the subtotal at or above which shipping is free.
	FreeShippingThreshold = 59.00

	// FlatShippingFee applies to every order under the free-shipping threshold.
	FlatShippingFee = 7.00
)

// Totals is the monetary breakdown of an order.
// Field names mirror the persisted order record.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	GST      float64 `json:"gst"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// Calculate is a pure function from line items to totals. It never fails;
// an empty item list yields a zero subtotal with the flat shipping fee.
//
// Totals must be re-derivable later from a stored order's line items, so
// this depends on nothing but the items themselves.
func Calculate(items []cart.LineItem) Totals {
	subtotal := decimal.Zero
	for _, item := range items {
		line := decimal.NewFromFloat(item.UnitPrice).
			Mul(decimal.NewFromInt(int64(item.Quantity))).
			Round(2)
		subtotal = subtotal.Add(line)
	}

	gst := subtotal.Mul(decimal.NewFromFloat(GSTRate)).Round(2)

	shipping := decimal.NewFromFloat(FlatShippingFee)
	if subtotal.GreaterThanOrEqual(decimal.NewFromFloat(FreeShippingThreshold)) {
		shipping = decimal.Zero
	}

	total := subtotal.Add(gst).Add(shipping)

	return Totals{
		Subtotal: subtotal.InexactFloat64(),
		GST:      gst.InexactFloat64(),
		Shipping: shipping.InexactFloat64(),
		Total:    total.InexactFloat64(),
	}
}
