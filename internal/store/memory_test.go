package store

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_CartLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(Variant{ProductID: 10, Size: "M", Name: "Tee", Price: decimal.NewFromInt(15), Stock: 9})

	first, err := m.CreateCartItem(ctx, CreateCartItemParams{UserID: 1, ProductID: 10, Size: "M", Quantity: 2})
	require.NoError(t, err)

	merged, err := m.CreateCartItem(ctx, CreateCartItemParams{UserID: 1, ProductID: 10, Size: "M", Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, first.ID, merged.ID)
	assert.Equal(t, 5, merged.Quantity)
	assert.NotNil(t, merged.UpdatedAt)

	other, err := m.CreateCartItem(ctx, CreateCartItemParams{UserID: 2, ProductID: 10, Size: "M", Quantity: 1})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	lines, err := m.GetCartLines(ctx, 1)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Tee", lines[0].Variant.Name)

	t.Run("Scoped to owner", func(t *testing.T) {
		_, err := m.UpdateCartItemQuantity(ctx, 1, other.ID, 4)
		assert.ErrorIs(t, err, ErrCartItemNotFound)
		assert.ErrorIs(t, m.RemoveCartItem(ctx, 1, other.ID), ErrCartItemNotFound)
		_, err = m.GetCartItem(ctx, 1, other.ID)
		assert.ErrorIs(t, err, ErrCartItemNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		it, err := m.UpdateCartItemQuantity(ctx, 1, first.ID, 8)
		require.NoError(t, err)
		assert.Equal(t, 8, it.Quantity)

		_, err = m.UpdateCartItemQuantity(ctx, 1, first.ID, 0)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	})

	t.Run("Lookup by variant", func(t *testing.T) {
		it, err := m.GetCartItemByUserAndVariant(ctx, 1, 10, "M")
		require.NoError(t, err)
		assert.Equal(t, first.ID, it.ID)

		it, err = m.GetCartItemByUserAndVariant(ctx, 1, 10, "L")
		assert.NoError(t, err)
		assert.Nil(t, it)
	})

	t.Run("Clear leaves other users alone", func(t *testing.T) {
		require.NoError(t, m.ClearCart(ctx, 1))
		require.NoError(t, m.ClearCart(ctx, 1))

		lines, _ := m.GetCartLines(ctx, 1)
		assert.Empty(t, lines)
		lines, _ = m.GetCartLines(ctx, 2)
		assert.Len(t, lines, 1)
	})
}

func TestMemory_CatalogAndUsers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.GetVariant(ctx, 1, "S")
	assert.ErrorIs(t, err, ErrVariantNotFound)

	require.NoError(t, m.UpsertVariant(ctx, Variant{ProductID: 1, Size: "S", Stock: 2}))
	v, err := m.GetVariant(ctx, 1, "S")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Stock)

	u, err := m.CreateUser(ctx, "A@B.com", "hash", "user")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)

	_, err = m.CreateUser(ctx, "a@b.com", "hash", "user")
	assert.ErrorIs(t, err, ErrEmailExists)

	found, err := m.FindByEmail(ctx, "A@b.COM")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	_, err = m.FindByEmail(ctx, "x@y.z")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
