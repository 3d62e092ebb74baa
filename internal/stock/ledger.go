// Package stock enforces non-negative inventory per product.
package stock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/supermartsg/checkout/internal/cart"
)

// ErrProductNotFound indicates a line item references a product that does
// not exist in the catalog. Reservation fails fatally on it.
var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError reports the first line item whose requested
// quantity exceeds the available stock. Earlier line items in the list may
// already have been decremented; those decrements are not rolled back.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = "Product " + e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		name, e.Available, e.Requested)
}

// Result reports the outcome of a reservation.
type Result struct {
	// Updated is the number of line items whose stock was decremented.
	Updated int

	// Skipped is set when the catalog exposes no stock column at all;
	// checkout proceeds without stock enforcement in that case.
	Skipped bool
	Reason  string
}

// Store is the relational port the ledger drives.
type Store interface {
	// StockColumn reports the column holding per-product quantity, or ""
	// when the catalog schema has none.
	StockColumn(ctx context.Context) (string, error)

	// Stock returns the current quantity for a product, or ErrProductNotFound.
	Stock(ctx context.Context, productID string) (int, error)

	// DecrementStock atomically subtracts quantity conditioned on the
	// remaining stock staying non-negative. It reports false, nil when the
	// condition fails and ErrProductNotFound when the product is missing.
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
}

// Ledger validates and decrements per-product inventory for order lines.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

// Reserve decrements stock for each line item in list order. On the first
// shortfall it stops and returns an *InsufficientStockError; decrements
// already applied to earlier items stay applied. Each decrement is a single
// conditional write, so concurrent reservations can never drive a product
// below zero.
func (l *Ledger) Reserve(ctx context.Context, items []cart.LineItem) (Result, error) {
	col, err := l.store.StockColumn(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("detect stock column: %w", err)
	}
	if col == "" {
		return Result{Skipped: true, Reason: "no stock/quantity column detected on products table"}, nil
	}

	purchasable := make([]cart.LineItem, 0, len(items))
	for _, item := range items {
		if item.ProductID != "" && item.Quantity > 0 {
			purchasable = append(purchasable, item)
		}
	}
	if len(purchasable) == 0 {
		return Result{Skipped: true, Reason: "no purchasable items found"}, nil
	}

	res := Result{}
	for _, item := range purchasable {
		applied, err := l.store.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return res, fmt.Errorf("product %s: %w", item.ProductID, ErrProductNotFound)
			}
			return res, fmt.Errorf("decrement stock for %s: %w", item.ProductID, err)
		}
		if !applied {
			available, availErr := l.store.Stock(ctx, item.ProductID)
			if availErr != nil {
				slog.WarnContext(ctx, "could not read available stock after failed decrement",
					"product_id", item.ProductID, "error", availErr)
			}
			return res, &InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: item.Name,
				Available:   available,
				Requested:   item.Quantity,
			}
		}
		res.Updated++
	}

	return res, nil
}
