package payment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/supermartsg/checkout/internal/cards"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/pricing"
)

var expirySeparator = regexp.MustCompile(`[/-]`)

// CardStrategy handles both saved-card references and newly entered cards.
// No card-network call is made; this is a local validation pass. New card
// data is discarded after the pass — only metadata plus an opaque token is
// ever kept, and only when the user opts in.
type CardStrategy struct {
	cards cards.Store
}

func NewCardStrategy(store cards.Store) *CardStrategy {
	return &CardStrategy{cards: store}
}

func (*CardStrategy) Method() Method { return MethodCard }

func (s *CardStrategy) Confirm(ctx context.Context, _ string, _ pricing.Totals,
	customer order.Customer, req Request) (Confirmation, error) {
	if req.SavedCardID != 0 {
		return s.confirmSaved(ctx, req)
	}
	return s.confirmNew(customer, req)
}

func (s *CardStrategy) confirmSaved(ctx context.Context, req Request) (Confirmation, error) {
	card, err := s.cards.ForUser(ctx, req.SavedCardID, req.UserID)
	if err != nil {
		// cards.ErrNotFound passes through for the caller.
		return Confirmation{}, err
	}
	return Confirmation{
		PaymentStatus: order.PaymentPaid,
		CardLast4:     card.Last4,
	}, nil
}

func (s *CardStrategy) confirmNew(customer order.Customer, req Request) (Confirmation, error) {
	number := strings.Join(strings.Fields(req.CardNumber), "")
	expiry := strings.TrimSpace(req.CardExpiry)
	cvv := strings.TrimSpace(req.CardCVV)

	var missing []string
	if number == "" {
		missing = append(missing, "card number")
	}
	if expiry == "" {
		missing = append(missing, "expiry")
	}
	if cvv == "" {
		missing = append(missing, "CVV")
	}
	if len(missing) > 0 {
		return Confirmation{}, &ValidationError{
			Message: fmt.Sprintf("Please enter your %s to pay by card.", strings.Join(missing, ", ")),
		}
	}

	last4 := number
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}

	conf := Confirmation{
		PaymentStatus: order.PaymentPaid,
		CardLast4:     last4,
	}

	if req.SaveCard && req.UserID != 0 {
		expMonth, expYear := splitExpiry(expiry)
		holder := req.CardName
		if holder == "" {
			holder = customer.FullName
		}
		label := req.CardName
		if label == "" {
			label = "Card"
		}
		conf.CardToSave = &cards.Card{
			UserID:         req.UserID,
			Brand:          "Card",
			Label:          label,
			Last4:          last4,
			ExpMonth:       expMonth,
			ExpYear:        expYear,
			CardholderName: holder,
			Token:          uuid.NewString(),
		}
	}

	return conf, nil
}

func splitExpiry(expiry string) (month, year string) {
	compact := strings.Join(strings.Fields(expiry), "")
	parts := expirySeparator.Split(compact, 2)
	if len(parts) > 0 {
		month = parts[0]
	}
	if len(parts) > 1 {
		year = parts[1]
	}
	return month, year
}
