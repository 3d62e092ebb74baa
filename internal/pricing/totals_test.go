package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/supermartsg/checkout/internal/cart"
)

func TestCalculate_AppliesGSTAndFlatShipping(t *testing.T) {
	items := []cart.LineItem{
		{ProductID: "p1", UnitPrice: 10.00, Quantity: 3},
	}

	totals := Calculate(items)

	require.Equal(t, 30.00, totals.Subtotal)
	require.Equal(t, 2.70, totals.GST)
	require.Equal(t, 7.00, totals.Shipping)
	require.Equal(t, 39.70, totals.Total)
}

func TestCalculate_FreeShippingBoundary(t *testing.T) {
	cases := []struct {
		name     string
		subtotal float64
		shipping float64
	}{
		{"just below threshold", 58.99, 7.00},
		{"at threshold", 59.00, 0.00},
		{"above threshold", 59.01, 0.00},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := Calculate([]cart.LineItem{
				{ProductID: "p1", UnitPrice: tc.subtotal, Quantity: 1},
			})
			require.Equal(t, tc.subtotal, totals.Subtotal)
			require.Equal(t, tc.shipping, totals.Shipping)
			require.Equal(t, totals.Subtotal+totals.GST+totals.Shipping, totals.Total)
		})
	}
}

func TestCalculate_RoundsLineAndGSTToCents(t *testing.T) {
	// 3 x 3.33 = 9.99; GST 0.8991 rounds to 0.90.
	totals := Calculate([]cart.LineItem{
		{ProductID: "p1", UnitPrice: 3.33, Quantity: 3},
	})

	require.Equal(t, 9.99, totals.Subtotal)
	require.Equal(t, 0.90, totals.GST)
	require.Equal(t, 17.89, totals.Total)
}

func TestCalculate_EmptyCart(t *testing.T) {
	totals := Calculate(nil)

	require.Equal(t, 0.00, totals.Subtotal)
	require.Equal(t, 0.00, totals.GST)
	require.Equal(t, 7.00, totals.Shipping)
	require.Equal(t, 7.00, totals.Total)
}
