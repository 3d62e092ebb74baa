// Package wallet manages stored-value balances for registered users.
package wallet

import (
	"context"
	"errors"
	"fmt"
)

// ErrInsufficientBalance is returned when a charge exceeds the current balance.
var ErrInsufficientBalance = errors.New("insufficient wallet balance")

// ErrMissingUser is returned for wallet operations without a user.
var ErrMissingUser = errors.New("wallet operation requires a user")

// ErrInvalidAmount is returned for non-positive charge or top-up amounts.
var ErrInvalidAmount = errors.New("invalid wallet amount")

// Store is the relational port for wallet rows.
type Store interface {
	// Balance returns the current balance, 0 for users without a wallet row.
	Balance(ctx context.Context, userID int64) (float64, error)

	// Debit subtracts amount conditioned on the balance staying
	// non-negative, in a single conditional write. It reports false, nil
	// when the balance is short.
	Debit(ctx context.Context, userID int64, amount float64) (bool, error)

	// Credit adds amount to the balance, creating the row when absent,
	// and returns the new balance.
	Credit(ctx context.Context, userID int64, amount float64) (float64, error)
}

// Service wraps the store with the business rules for charging and topping up.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Balance(ctx context.Context, userID int64) (float64, error) {
	if userID == 0 {
		return 0, nil
	}
	balance, err := s.store.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load wallet balance: %w", err)
	}
	return balance, nil
}

// Charge debits amount from the user's wallet. The decrement is a single
// conditional write, so two concurrent checkouts by the same user can never
// drive the balance negative. Returns the new balance on success.
func (s *Service) Charge(ctx context.Context, userID int64, amount float64) (float64, error) {
	if userID == 0 {
		return 0, ErrMissingUser
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	applied, err := s.store.Debit(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("charge wallet: %w", err)
	}
	if !applied {
		return 0, ErrInsufficientBalance
	}
	return s.Balance(ctx, userID)
}

// TopUp credits amount to the user's wallet and returns the new balance.
func (s *Service) TopUp(ctx context.Context, userID int64, amount float64) (float64, error) {
	if userID == 0 {
		return 0, ErrMissingUser
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}

	balance, err := s.store.Credit(ctx, userID, amount)
	if err != nil {
		return 0, fmt.Errorf("top up wallet: %w", err)
	}
	return balance, nil
}
