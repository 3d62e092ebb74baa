// Package cards manages saved payment methods.
//
// Only card metadata is ever stored: brand, last four digits, expiry and
// cardholder name, plus an opaque token minted at save time. The raw card
// number and CVV never leave the single validation pass during checkout.
package cards

import (
	"context"
	"errors"
)

// ErrNotFound indicates the referenced saved card does not exist or does
// not belong to the requesting user.
var ErrNotFound = errors.New("saved card not found")

// Card is a persisted payment method.
type Card struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"-"`
	Brand          string `json:"brand"`
	Label          string `json:"label"`
	Last4          string `json:"last4"`
	ExpMonth       string `json:"expMonth"`
	ExpYear        string `json:"expYear"`
	CardholderName string `json:"cardholderName"`

	// Token is an opaque reference minted when the card is saved.
	// It is never the card number.
	Token string `json:"-"`
}

// Store is the relational port for saved cards.
type Store interface {
	ListByUser(ctx context.Context, userID int64) ([]Card, error)

	// ForUser loads a card by id scoped to its owner; ErrNotFound when the
	// id does not exist or belongs to someone else.
	ForUser(ctx context.Context, id, userID int64) (Card, error)

	// Save persists a card and returns its id.
	Save(ctx context.Context, card Card) (int64, error)
}
