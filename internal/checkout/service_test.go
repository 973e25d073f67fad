package checkout

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/internal/accounts"
	"github.com/angelmondragon/vowmarket-backend/internal/catalog"
	"github.com/angelmondragon/vowmarket-backend/internal/orders"
	"github.com/angelmondragon/vowmarket-backend/pkg/config"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/vowmarket-backend/pkg/stripe"
	"github.com/angelmondragon/vowmarket-backend/pkg/stripe/stripetest"
)

func newTestService(t *testing.T, conn *gorm.DB, gateway *stripetest.Gateway) Service {
	t.Helper()
	catalogRepo := catalog.NewRepository(conn)
	accountsRepo := accounts.NewRepository(conn)
	agg, err := orders.NewAggregator(orders.AggregatorParams{
		Repo:     orders.NewRepository(conn),
		Catalog:  func(tx *gorm.DB) orders.CatalogReader { return catalogRepo.WithTx(tx) },
		Sellers:  func(tx *gorm.DB) orders.SellerReader { return accountsRepo.WithTx(tx) },
		Currency: "usd",
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		TransactionRunner: dbtest.Client(conn),
		Aggregator:        agg,
		Carts:             catalogRepo,
		Gateway:           gateway,
		Stripe: config.StripeConfig{
			SuccessURL: "https://vowmarket.test/success",
			CancelURL:  "https://vowmarket.test/cancel",
		},
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc
}

func TestCheckoutCartOpensSessionPerSeller(t *testing.T) {
	conn := dbtest.Open(t)
	gateway := stripetest.New()
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	buyer := dbtest.User(t, conn, enums.UserRoleBuyer)
	sellerA := dbtest.Seller(t, conn)
	sellerB := dbtest.Seller(t, conn)
	gown := dbtest.Product(t, conn, sellerA.ID, 10000, 1)
	shoes := dbtest.Product(t, conn, sellerB.ID, 4000, 2)
	dbtest.CartItem(t, conn, buyer.ID, gown, 1)
	dbtest.CartItem(t, conn, buyer.ID, shoes, 2)

	result, err := svc.CheckoutCart(ctx, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(18000), result.Total)
	require.Len(t, result.Sessions, 2)
	for _, session := range result.Sessions {
		assert.NotEmpty(t, session.URL)
		assert.Empty(t, session.Error)
	}

	require.Len(t, gateway.Sessions, 2)
	var gownParams *stripe.CheckoutSessionParams
	for _, params := range gateway.Sessions {
		if stripe.StringValue(params.PaymentIntentData.TransferData.Destination) == *sellerA.StripeAccountID {
			gownParams = params
		}
	}
	require.NotNil(t, gownParams)
	pi := gownParams.PaymentIntentData
	assert.Equal(t, string(stripe.PaymentIntentCaptureMethodManual), stripe.StringValue(pi.CaptureMethod))
	assert.Equal(t, int64(500), stripe.Int64Value(pi.ApplicationFeeAmount))
	assert.Nil(t, pi.TransferData.Amount)
	assert.Equal(t, "9500", pi.Metadata[pkgstripe.MetadataSellerAmount])
	assert.Equal(t, "cart", gownParams.Metadata[pkgstripe.MetadataSource])
	assert.Equal(t, sellerA.ID.String(), gownParams.Metadata[pkgstripe.MetadataSellerID])
	assert.Equal(t, pkgstripe.CheckoutIdempotencyKey(result.OrderID, sellerA.ID), stripe.StringValue(gownParams.IdempotencyKey))
	require.Len(t, gownParams.LineItems, 1)
	assert.Equal(t, int64(10000), stripe.Int64Value(gownParams.LineItems[0].PriceData.UnitAmount))

	var cartItems int64
	require.NoError(t, conn.Model(&models.CartItem{}).Count(&cartItems).Error)
	assert.Equal(t, int64(2), cartItems)
}

func TestCheckoutCartReportsPerSellerFailure(t *testing.T) {
	conn := dbtest.Open(t)
	gateway := stripetest.New()
	svc := newTestService(t, conn, gateway)
	ctx := context.Background()

	buyer := dbtest.User(t, conn, enums.UserRoleBuyer)
	sellerA := dbtest.Seller(t, conn)
	sellerB := dbtest.Seller(t, conn)
	dbtest.CartItem(t, conn, buyer.ID, dbtest.Product(t, conn, sellerA.ID, 10000, 1), 1)
	dbtest.CartItem(t, conn, buyer.ID, dbtest.Product(t, conn, sellerB.ID, 4000, 1), 1)
	gateway.SessionErr[*sellerB.StripeAccountID] = stripetest.ProviderError("account cannot accept charges")

	result, err := svc.CheckoutCart(ctx, buyer.ID)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 2)
	for _, session := range result.Sessions {
		if session.SellerID == sellerB.ID {
			assert.Equal(t, "account cannot accept charges", session.Error)
			assert.Empty(t, session.URL)
		} else {
			assert.NotEmpty(t, session.URL)
		}
	}

	var orderCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)
}

func TestCheckoutCartEmpty(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newTestService(t, conn, stripetest.New())
	buyer := dbtest.User(t, conn, enums.UserRoleBuyer)

	_, err := svc.CheckoutCart(context.Background(), buyer.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestCheckoutCartMissingPayoutAccountOpensNothing(t *testing.T) {
	conn := dbtest.Open(t)
	gateway := stripetest.New()
	svc := newTestService(t, conn, gateway)
	buyer := dbtest.User(t, conn, enums.UserRoleBuyer)
	unconnected := dbtest.User(t, conn, enums.UserRoleSeller)
	dbtest.CartItem(t, conn, buyer.ID, dbtest.Product(t, conn, unconnected.ID, 10000, 1), 1)

	_, err := svc.CheckoutCart(context.Background(), buyer.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonMissingPayoutAccount))
	assert.Empty(t, gateway.Sessions)
}

func TestCheckoutOfferTagsOffer(t *testing.T) {
	conn := dbtest.Open(t)
	gateway := stripetest.New()
	svc := newTestService(t, conn, gateway)
	buyer := dbtest.User(t, conn, enums.UserRoleBuyer)
	seller := dbtest.Seller(t, conn)
	gown := dbtest.Product(t, conn, seller.ID, 15000, 1)
	offer := dbtest.Offer(t, conn, buyer.ID, gown, 12000, enums.OfferStatusAccepted)

	result, err := svc.CheckoutOffer(context.Background(), buyer.ID, offer.ID)
	require.NoError(t, err)
	require.Len(t, result.Sessions, 1)
	assert.Equal(t, int64(12000), result.Total)

	require.Len(t, gateway.Sessions, 1)
	params := gateway.Sessions[0]
	assert.Equal(t, offer.ID.String(), params.Metadata[pkgstripe.MetadataOfferID])
	assert.Equal(t, int64(600), stripe.Int64Value(params.PaymentIntentData.ApplicationFeeAmount))
}
