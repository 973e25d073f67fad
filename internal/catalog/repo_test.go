package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

func TestDecrementInventory(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	seller := dbtest.Seller(t, conn)
	product := dbtest.Product(t, conn, seller.ID, 10000, 3)

	require.NoError(t, repo.DecrementInventory(ctx, product.ID, 2))

	got, err := repo.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, 2, got.SellCount)
	assert.Equal(t, enums.ProductStatusActive, got.Status)

	require.NoError(t, repo.DecrementInventory(ctx, product.ID, 1))
	got, err = repo.FindProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
	assert.Equal(t, enums.ProductStatusSoldOut, got.Status)

	assert.ErrorIs(t, repo.DecrementInventory(ctx, product.ID, 1), ErrInsufficientInventory)
	assert.Error(t, repo.DecrementInventory(ctx, product.ID, 0))
}

func TestRemoveCartProductsDropsEmptyCart(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	buyer := dbtest.User(t, conn, enums.UserRoleBuyer)
	sellerA := dbtest.Seller(t, conn)
	sellerB := dbtest.Seller(t, conn)
	gownA := dbtest.Product(t, conn, sellerA.ID, 10000, 1)
	gownB := dbtest.Product(t, conn, sellerB.ID, 5000, 1)
	dbtest.CartItem(t, conn, buyer.ID, gownA, 1)
	dbtest.CartItem(t, conn, buyer.ID, gownB, 1)

	require.NoError(t, repo.RemoveCartProducts(ctx, buyer.ID, []uuid.UUID{gownA.ID}))
	cart, err := repo.FindCartByBuyer(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, gownB.ID, cart.Items[0].ProductID)
	require.NotNil(t, cart.Items[0].Product)

	require.NoError(t, repo.RemoveCartProducts(ctx, buyer.ID, []uuid.UUID{gownB.ID}))
	var carts int64
	require.NoError(t, conn.Model(&models.CartRecord{}).Count(&carts).Error)
	assert.Zero(t, carts)

	assert.NoError(t, repo.RemoveCartProducts(ctx, buyer.ID, []uuid.UUID{gownB.ID}))
}

func TestDeletePendingOffersKeepsOtherBuyers(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	buyer := dbtest.User(t, conn, enums.UserRoleBuyer)
	other := dbtest.User(t, conn, enums.UserRoleBuyer)
	seller := dbtest.Seller(t, conn)
	gown := dbtest.Product(t, conn, seller.ID, 10000, 1)
	dbtest.Offer(t, conn, buyer.ID, gown, 8000, enums.OfferStatusPending)
	dbtest.Offer(t, conn, other.ID, gown, 8500, enums.OfferStatusPending)
	accepted := dbtest.Offer(t, conn, buyer.ID, gown, 9000, enums.OfferStatusAccepted)

	deleted, err := repo.DeletePendingOffers(ctx, buyer.ID, gown.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.Offer
	require.NoError(t, conn.Find(&remaining).Error)
	assert.Len(t, remaining, 2)

	found, err := repo.FindOfferForUpdate(ctx, accepted.ID)
	require.NoError(t, err)
	require.NotNil(t, found.Product)
	assert.Equal(t, gown.ID, found.Product.ID)

	require.NoError(t, repo.DeleteOffer(ctx, accepted.ID))
	_, err = repo.FindOfferForUpdate(ctx, accepted.ID)
	assert.Error(t, err)
}
