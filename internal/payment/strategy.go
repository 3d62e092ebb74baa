package payment

import (
	"context"
	"errors"

	"github.com/supermartsg/checkout/internal/cards"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/pricing"
)

// ErrLoginRequired is returned by strategies that only work for
// authenticated users.
var ErrLoginRequired = errors.New("payment method requires a logged-in account")

// ValidationError reports missing or malformed payment input. Recoverable;
// the user is sent back to the checkout form with the message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Request carries the method-specific fields from the checkout form.
// Raw card data lives only here, for the single validation pass.
type Request struct {
	UserID int64

	SavedCardID int64
	CardNumber  string
	CardExpiry  string
	CardCVV     string
	CardName    string
	SaveCard    bool
}

// Confirmation is the result of a successful payment confirmation.
type Confirmation struct {
	// PaymentStatus is the initial payment status of the order record.
	PaymentStatus string

	// CardLast4 is set by the card strategy; the only card data that
	// survives checkout.
	CardLast4 string

	// PayNow is set by the PayNow strategy for out-of-band display.
	PayNow *order.PayNowPayload

	// CardToSave is populated when the user opted to keep a new card.
	// Persisting it is the orchestrator's job and is best-effort.
	CardToSave *cards.Card
}

// Strategy is the common confirm contract. Implementations may call
// external services and must honor ctx.
type Strategy interface {
	Method() Method
	Confirm(ctx context.Context, invoiceNumber string, totals pricing.Totals,
		customer order.Customer, req Request) (Confirmation, error)
}

// Registry maps each method onto its strategy.
type Registry map[Method]Strategy

func NewRegistry(strategies ...Strategy) Registry {
	reg := make(Registry, len(strategies))
	for _, s := range strategies {
		reg[s.Method()] = s
	}
	return reg
}
