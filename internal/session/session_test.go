package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supermartsg/checkout/internal/cards"
	"github.com/supermartsg/checkout/internal/cart"
	"github.com/supermartsg/checkout/internal/order"
	"github.com/supermartsg/checkout/internal/pricing"
)

func TestSession_UserHelpers(t *testing.T) {
	anon := &Session{ID: "s1"}
	require.Equal(t, int64(0), anon.UserID())
	require.Equal(t, "", anon.UserEmail())

	known := &Session{ID: "s2", User: &User{ID: 7, Email: "alice@example.com"}}
	require.Equal(t, int64(7), known.UserID())
	require.Equal(t, "alice@example.com", known.UserEmail())
}

func TestSession_FlashesAreOneShot(t *testing.T) {
	sess := &Session{ID: "s1"}
	sess.AddFlash("success", "Order placed!")
	sess.AddFlash("error", "Something else")

	flashes := sess.ConsumeFlashes()
	require.Len(t, flashes, 2)
	require.Equal(t, "success", flashes[0].Kind)

	require.Empty(t, sess.ConsumeFlashes())
}

func TestSession_SavedCardsCacheCapped(t *testing.T) {
	sess := &Session{ID: "s1"}
	for i := 0; i < savedCardsCacheLimit+2; i++ {
		sess.CacheSavedCard(cards.Card{ID: int64(i + 1)})
	}

	require.Len(t, sess.SavedCardsCache, savedCardsCacheLimit)
	// Newest first.
	require.Equal(t, int64(savedCardsCacheLimit+2), sess.SavedCardsCache[0].ID)
}

func TestNewPendingCheckout_TokenAndTTL(t *testing.T) {
	items := []cart.LineItem{{ProductID: "p1", Quantity: 1}}
	pending := NewPendingCheckout("INV-1", order.Customer{FullName: "Alice Tan"}, items, pricing.Totals{Total: 10})

	require.NotEmpty(t, pending.Token)
	require.Equal(t, "INV-1", pending.InvoiceNumber)
	require.False(t, pending.Expired())
	require.WithinDuration(t, pending.CreatedAt.Add(PendingTTL), pending.ExpiresAt, time.Second)

	other := NewPendingCheckout("INV-2", order.Customer{}, nil, pricing.Totals{})
	require.NotEqual(t, pending.Token, other.Token)
}

func TestMemoryStore_LoadCreatesFreshSession(t *testing.T) {
	store := NewMemoryStore()

	sess, err := store.Load(context.Background(), "fresh")
	require.NoError(t, err)
	require.Equal(t, "fresh", sess.ID)
	require.Nil(t, sess.User)
}

func TestMemoryStore_SaveRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess := &Session{ID: "s1", User: &User{ID: 7, Email: "alice@example.com"}}
	sess.AddFlash("success", "hello")
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, int64(7), loaded.UserID())
	require.Len(t, loaded.Flashes, 1)
}

func TestMemoryStore_TakePendingConsumesOnce(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	pending := NewPendingCheckout("INV-1", order.Customer{}, nil, pricing.Totals{})
	require.NoError(t, store.StagePending(ctx, pending))

	// Peeking does not consume.
	peeked, err := store.Pending(ctx, pending.Token)
	require.NoError(t, err)
	require.Equal(t, "INV-1", peeked.InvoiceNumber)

	taken, err := store.TakePending(ctx, pending.Token)
	require.NoError(t, err)
	require.Equal(t, "INV-1", taken.InvoiceNumber)

	_, err = store.TakePending(ctx, pending.Token)
	require.ErrorIs(t, err, ErrPendingNotFound)
	_, err = store.Pending(ctx, pending.Token)
	require.ErrorIs(t, err, ErrPendingNotFound)
}

func TestMemoryStore_ExpiredPendingIsGone(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	pending := NewPendingCheckout("INV-1", order.Customer{}, nil, pricing.Totals{})
	pending.ExpiresAt = time.Now().Add(-time.Minute)
	require.NoError(t, store.StagePending(ctx, pending))

	_, err := store.Pending(ctx, pending.Token)
	require.ErrorIs(t, err, ErrPendingNotFound)
}
