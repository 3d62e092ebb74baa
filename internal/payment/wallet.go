package payment

import (
	"context"

	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/pricing"
	"github.com/supermartsg/checkout/internal/wallet"
)

// WalletStrategy charges the order total against the user's stored-value
// balance. The decrement is conditional at the store layer, so concurrent
// checkouts by the same user cannot overdraw.
type WalletStrategy struct {
	wallet *wallet.Service
}

func NewWalletStrategy(w *wallet.Service) *WalletStrategy {
	return &WalletStrategy{wallet: w}
}

func (*WalletStrategy) Method() Method { return MethodWallet }

func (s *WalletStrategy) Confirm(ctx context.Context, _ string, totals pricing.Totals,
	_ order.Customer, req Request) (Confirmation, error) {
	if req.UserID == 0 {
		return Confirmation{}, ErrLoginRequired
	}
	if _, err := s.wallet.Charge(ctx, req.UserID, totals.Total); err != nil {
		// wallet.ErrInsufficientBalance passes through for the caller.
		return Confirmation{}, err
	}
	return Confirmation{PaymentStatus: order.PaymentPaid}, nil
}
