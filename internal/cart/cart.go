// Package cart normalizes loosely-shaped session carts into canonical,
// priced line items and defines the port for the persisted per-user cart.
//
// Session carts accumulate legacy shapes over time: quantities under "qty"
// or "quantity", as numbers or numeric strings; prices on the entry or on a
// nested product object; the whole cart either a bare array or wrapped in
// an "items" envelope. Normalize accepts all of them.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
)

// LineItem is a priced, quantified cart entry for one product.
// Subtotal is always UnitPrice * Quantity.
type LineItem struct {
	ProductID string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

// Store is the persisted per-user cart, backed by the relational store.
// Anonymous sessions only have the session cart and never touch this.
type Store interface {
	UserCart(ctx context.Context, userID int64) ([]LineItem, error)
	UpsertItem(ctx context.Context, userID int64, productID string, quantity int) error
	RemoveItem(ctx context.Context, userID int64, productID string) error
	Clear(ctx context.Context, userID int64) error
}

// Normalize converts a raw session cart into canonical line items and
// returns the canonical JSON to write back into the session, so subsequent
// reads within the same request see a consistent shape.
//
// Malformed entries degrade instead of failing: quantity defaults to 1,
// price to 0. The result may be empty but is never an error.
func Normalize(raw json.RawMessage) ([]LineItem, json.RawMessage) {
	entries := rawEntries(raw)

	items := make([]LineItem, 0, len(entries))
	for i, entry := range entries {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		qty := coerceInt(firstPresent(m, "quantity", "qty"))
		if qty < 1 {
			qty = 1
		}

		product, _ := m["product"].(map[string]any)
		price, ok := coerceFloat(m["price"])
		if !ok && product != nil {
			price, _ = coerceFloat(product["price"])
		}
		if price < 0 {
			price = 0
		}

		id := coerceString(firstPresent(m, "id", "productId", "product_id"))
		name := coerceString(firstPresent(m, "name", "productName"))
		if name == "" && product != nil {
			name = coerceString(firstPresent(product, "name", "title"))
		}
		if name == "" {
			if id != "" {
				name = "Item " + id
			} else {
				name = fmt.Sprintf("Item %d", i+1)
			}
		}

		items = append(items, LineItem{
			ProductID: id,
			Name:      name,
			UnitPrice: price,
			Quantity:  qty,
			Subtotal:  price * float64(qty),
		})
	}

	canonical, err := json.Marshal(items)
	if err != nil {
		canonical = json.RawMessage("[]")
	}
	return items, canonical
}

// rawEntries accepts either a bare JSON array or a {"items": [...]} wrapper.
func rawEntries(raw json.RawMessage) []any {
	if len(raw) == 0 {
		return nil
	}

	var arr []any
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}

	var wrapper struct {
		Items []any `json:"items"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil {
		return wrapper.Items
	}
	return nil
}

func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func coerceInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return 0
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		if parsed, err := strconv.ParseFloat(n, 64); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		// JSON numbers arrive as float64; legacy carts stored numeric ids.
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}
