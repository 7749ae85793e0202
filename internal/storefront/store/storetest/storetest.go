// Package storetest holds the behaviour every storefront store driver must
// share. Driver tests call Run with a constructor for a migrated store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/domain"
	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/idx"
	"github.com/stretchr/testify/require"
)

// SeededProductIDs are inserted by the catalogue seed migration.
var SeededProductIDs = []string{
	"prod-canvas-tote",
	"prod-classic-tee",
	"prod-enamel-mug",
	"prod-sticker-pack",
	"prod-wool-beanie",
}

func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("catalogue", func(t *testing.T) { testCatalogue(t, newStore(t)) })
	t.Run("orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("partial order", func(t *testing.T) { testPartialOrder(t, newStore(t)) })
}

func testCatalogue(t *testing.T, st store.Store) {
	ctx := context.Background()

	all, err := st.Products().ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, len(SeededProductIDs))
	require.Equal(t, "Canvas Tote", all[0].Name, "sorted by name")

	some, err := st.Products().GetProducts(ctx, []string{"prod-enamel-mug", "nope"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	require.EqualValues(t, 1400, some[0].Price)

	none, err := st.Products().GetProducts(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, none)
}

func newOrder(userID string, at time.Time) domain.Order {
	return domain.Order{
		ID:          idx.New().String(),
		UserID:      userID,
		OrderNumber: idx.New().String(),
		Total:       3900,
		Status:      domain.OrderStatusPending,
		CreatedAt:   at,
	}
}

func testOrders(t *testing.T, st store.Store) {
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)

	older := newOrder("user-1", now.Add(-time.Hour))
	newer := newOrder("user-1", now)
	other := newOrder("user-2", now)
	for _, o := range []domain.Order{older, newer, other} {
		require.NoError(t, st.Orders().CreateOrder(ctx, o))
	}

	require.NoError(t, st.Orders().AddOrderItems(ctx, []domain.OrderItem{
		{ID: idx.New().String(), OrderID: newer.ID, ProductID: "prod-classic-tee", Quantity: 1, Price: 2500},
		{ID: idx.New().String(), OrderID: newer.ID, ProductID: "prod-enamel-mug", Quantity: 1, Price: 1400},
	}))

	t.Run("duplicate order number", func(t *testing.T) {
		dupe := newOrder("user-1", now)
		dupe.OrderNumber = newer.OrderNumber
		require.ErrorIs(t, st.Orders().CreateOrder(ctx, dupe), store.ErrAlreadyExists)
	})

	t.Run("get by number", func(t *testing.T) {
		got, err := st.Orders().GetOrderByNumber(ctx, newer.OrderNumber)
		require.NoError(t, err)
		require.Equal(t, newer.ID, got.ID)
		require.Equal(t, "user-1", got.UserID)
		require.Len(t, got.Items, 2)
		require.True(t, now.Equal(got.CreatedAt))

		_, err = st.Orders().GetOrderByNumber(ctx, "missing")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("list by user", func(t *testing.T) {
		got, err := st.Orders().ListOrdersByUser(ctx, "user-1")
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, newer.ID, got[0].ID, "newest first")
		require.Len(t, got[0].Items, 2)
		require.Empty(t, got[1].Items)
		require.NotNil(t, got[1].Items)

		none, err := st.Orders().ListOrdersByUser(ctx, "user-3")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("count items", func(t *testing.T) {
		n, err := st.Orders().CountOrderItems(ctx, newer.ID)
		require.NoError(t, err)
		require.Equal(t, 2, n)
	})
}

func testPartialOrder(t *testing.T, st store.Store) {
	ctx := context.Background()
	o := newOrder("user-1", time.Now())
	require.NoError(t, st.Orders().CreateOrder(ctx, o))

	// One bad item fails the whole batch; the order row stays.
	err := st.Orders().AddOrderItems(ctx, []domain.OrderItem{
		{ID: idx.New().String(), OrderID: o.ID, ProductID: "prod-classic-tee", Quantity: 1, Price: 2500},
		{ID: idx.New().String(), OrderID: o.ID, ProductID: "prod-does-not-exist", Quantity: 1, Price: 100},
	})
	require.ErrorIs(t, err, store.ErrUnknownProduct)

	got, err := st.Orders().GetOrderByNumber(ctx, o.OrderNumber)
	require.NoError(t, err)
	require.Empty(t, got.Items)
}
