package cart

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_BareArray(t *testing.T) {
	raw := json.RawMessage(`[{"id":"p1","name":"Milk","price":3.50,"quantity":2}]`)

	items, canonical := Normalize(raw)

	require.Len(t, items, 1)
	require.Equal(t, "p1", items[0].ProductID)
	require.Equal(t, "Milk", items[0].Name)
	require.Equal(t, 3.50, items[0].UnitPrice)
	require.Equal(t, 2, items[0].Quantity)
	require.Equal(t, 7.00, items[0].Subtotal)
	require.JSONEq(t, `[{"id":"p1","name":"Milk","price":3.5,"quantity":2,"subtotal":7}]`, string(canonical))
}

func TestNormalize_ItemsEnvelope(t *testing.T) {
	raw := json.RawMessage(`{"items":[{"id":"p1","name":"Bread","price":2,"qty":3}]}`)

	items, _ := Normalize(raw)

	require.Len(t, items, 1)
	require.Equal(t, 3, items[0].Quantity)
	require.Equal(t, 6.00, items[0].Subtotal)
}

func TestNormalize_QuantityVariants(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want int
	}{
		{"qty key", `[{"id":"p1","price":1,"qty":4}]`, 4},
		{"quantity as string", `[{"id":"p1","price":1,"quantity":"5"}]`, 5},
		{"missing defaults to one", `[{"id":"p1","price":1}]`, 1},
		{"zero defaults to one", `[{"id":"p1","price":1,"quantity":0}]`, 1},
		{"garbage defaults to one", `[{"id":"p1","price":1,"quantity":"lots"}]`, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, _ := Normalize(json.RawMessage(tc.raw))
			require.Len(t, items, 1)
			require.Equal(t, tc.want, items[0].Quantity)
		})
	}
}

func TestNormalize_PriceFallsBackToNestedProduct(t *testing.T) {
	raw := json.RawMessage(`[{"id":"p1","quantity":2,"product":{"name":"Eggs","price":"4.20"}}]`)

	items, _ := Normalize(raw)

	require.Len(t, items, 1)
	require.Equal(t, "Eggs", items[0].Name)
	require.Equal(t, 4.20, items[0].UnitPrice)
	require.Equal(t, 8.40, items[0].Subtotal)
}

func TestNormalize_MissingPriceDefaultsToZero(t *testing.T) {
	raw := json.RawMessage(`[{"id":"p1","name":"Mystery","quantity":2}]`)

	items, _ := Normalize(raw)

	require.Len(t, items, 1)
	require.Equal(t, 0.00, items[0].UnitPrice)
	require.Equal(t, 0.00, items[0].Subtotal)
}

func TestNormalize_NamePlaceholders(t *testing.T) {
	raw := json.RawMessage(`[{"id":"p9","price":1},{"price":1}]`)

	items, _ := Normalize(raw)

	require.Len(t, items, 2)
	require.Equal(t, "Item p9", items[0].Name)
	require.Equal(t, "Item 2", items[1].Name)
}

func TestNormalize_SkipsNonObjectEntries(t *testing.T) {
	raw := json.RawMessage(`["oops",{"id":"p1","name":"Ok","price":1,"quantity":1},42]`)

	items, _ := Normalize(raw)

	require.Len(t, items, 1)
	require.Equal(t, "p1", items[0].ProductID)
}

func TestNormalize_EmptyAndMalformedInput(t *testing.T) {
	for _, raw := range []string{"", "null", "not json", `{"cart":[]}`} {
		items, canonical := Normalize(json.RawMessage(raw))
		require.Empty(t, items, "input %q", raw)
		require.JSONEq(t, "[]", string(canonical), "input %q", raw)
	}
}

func TestNormalize_NumericIDsFromLegacyCarts(t *testing.T) {
	raw := json.RawMessage(`[{"id":42,"name":"Tea","price":5,"quantity":1}]`)

	items, _ := Normalize(raw)

	require.Len(t, items, 1)
	require.Equal(t, "42", items[0].ProductID)
}
