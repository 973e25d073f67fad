package stripewebhook

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/internal/accounts"
	"github.com/angelmondragon/vowmarket-backend/internal/catalog"
	"github.com/angelmondragon/vowmarket-backend/internal/ledger"
	"github.com/angelmondragon/vowmarket-backend/internal/orders"
	"github.com/angelmondragon/vowmarket-backend/internal/payments"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/metrics"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
	pkgstripe "github.com/angelmondragon/vowmarket-backend/pkg/stripe"
	"github.com/angelmondragon/vowmarket-backend/pkg/stripe/stripetest"
)

type fixture struct {
	conn   *gorm.DB
	svc    *Service
	reg    *prometheus.Registry
	ledger ledger.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)
	accountsRepo := accounts.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	syncer, err := accounts.NewService(accounts.ServiceParams{
		Repo:              accountsRepo,
		Gateway:           stripetest.New(),
		TransactionRunner: dbtest.Client(conn),
		Outbox:            emitter,
		Logger:            logg,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.NewSettlementMetrics(reg)
	svc, err := NewService(ServiceParams{
		TransactionRunner: dbtest.Client(conn),
		Payments:          payments.NewRepository(conn),
		Orders:            orders.NewRepository(conn),
		Catalog:           catalog.NewRepository(conn),
		Accounts:          accountsRepo,
		Ledger:            ledgerSvc,
		AccountSync:       syncer,
		Outbox:            emitter,
		Metrics:           m,
		Logger:            logg,
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, reg: reg, ledger: ledgerSvc}
}

// counter reads a counter sample from the fixture registry, zero when absent.
func (f *fixture) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func matchLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if value, ok := want[pair.GetName()]; ok {
			if value != pair.GetValue() {
				return false
			}
			matched++
		}
	}
	return matched == len(want)
}

// cartOrder builds a pending cart order the way checkout does.
func (f *fixture) cartOrder(t *testing.T, buyerID uuid.UUID) *orders.Aggregate {
	t.Helper()
	catalogRepo := catalog.NewRepository(f.conn)
	accountsRepo := accounts.NewRepository(f.conn)
	agg, err := orders.NewAggregator(orders.AggregatorParams{
		Repo:     orders.NewRepository(f.conn),
		Catalog:  func(tx *gorm.DB) orders.CatalogReader { return catalogRepo.WithTx(tx) },
		Sellers:  func(tx *gorm.DB) orders.SellerReader { return accountsRepo.WithTx(tx) },
		Currency: "usd",
	})
	require.NoError(t, err)

	cart, err := catalogRepo.FindCartByBuyer(context.Background(), buyerID)
	require.NoError(t, err)
	lines := make([]orders.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, orders.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	var built *orders.Aggregate
	require.NoError(t, dbtest.Client(f.conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		built, err = agg.BuildFromCart(context.Background(), tx, buyerID, lines)
		return err
	}))
	return built
}

func sessionCompleted(t *testing.T, agg *orders.Aggregate, sellerID uuid.UUID, intentID string) *stripe.Event {
	t.Helper()
	group, ok := agg.Group(sellerID)
	require.True(t, ok)
	meta := pkgstripe.SettlementMetadata{
		OrderID:      agg.Order.ID,
		BuyerID:      agg.Order.BuyerID,
		SellerID:     sellerID,
		Source:       agg.Order.Source,
		TotalAmount:  group.Split.Total,
		SellerAmount: group.Split.SellerAmount,
		AdminAmount:  group.Split.AdminAmount,
	}
	return sessionEvent(t, meta.Map(), intentID)
}

func sessionEvent(t *testing.T, metadata map[string]string, intentID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             "cs_" + intentID,
		"object":         "checkout.session",
		"payment_intent": intentID,
		"metadata":       metadata,
	})
	require.NoError(t, err)
	return &stripe.Event{
		ID:   "evt_" + intentID,
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestSettlementCompletesOrderAfterEverySellerPays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	buyer := dbtest.User(t, f.conn, enums.UserRoleBuyer)
	sellerA := dbtest.Seller(t, f.conn)
	sellerB := dbtest.Seller(t, f.conn)
	gown := dbtest.Product(t, f.conn, sellerA.ID, 10000, 1)
	veil := dbtest.Product(t, f.conn, sellerB.ID, 4000, 3)
	dbtest.CartItem(t, f.conn, buyer.ID, gown, 1)
	dbtest.CartItem(t, f.conn, buyer.ID, veil, 2)
	agg := f.cartOrder(t, buyer.ID)

	require.NoError(t, f.svc.HandleEvent(ctx, sessionCompleted(t, agg, sellerA.ID, "pi_a")))

	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", agg.Order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, order.Status)

	require.NoError(t, f.svc.HandleEvent(ctx, sessionCompleted(t, agg, sellerB.ID, "pi_b")))

	require.NoError(t, f.conn.First(&order, "id = ?", agg.Order.ID).Error)
	assert.Equal(t, enums.OrderStatusCompleted, order.Status)

	var a, b models.User
	require.NoError(t, f.conn.First(&a, "id = ?", sellerA.ID).Error)
	require.NoError(t, f.conn.First(&b, "id = ?", sellerB.ID).Error)
	assert.Equal(t, int64(9500), a.BalanceCents)
	assert.Equal(t, int64(7600), b.BalanceCents)

	var gownRow, veilRow models.Product
	require.NoError(t, f.conn.First(&gownRow, "id = ?", gown.ID).Error)
	assert.Equal(t, 0, gownRow.Quantity)
	assert.Equal(t, enums.ProductStatusSoldOut, gownRow.Status)
	require.NoError(t, f.conn.First(&veilRow, "id = ?", veil.ID).Error)
	assert.Equal(t, 1, veilRow.Quantity)

	var cartItems int64
	require.NoError(t, f.conn.Model(&models.CartItem{}).Count(&cartItems).Error)
	assert.Zero(t, cartItems)

	var completedEvents int64
	require.NoError(t, f.conn.Model(&models.OutboxEvent{}).
		Where("event_type = ?", enums.EventOrderCompleted).Count(&completedEvents).Error)
	assert.Equal(t, int64(1), completedEvents)
	assert.Equal(t, float64(17100), f.counter(t, "vowmarket_settlement_seller_credit_cents_total", nil))
}

func TestSettlementDuplicateDeliveryCreditsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	buyer := dbtest.User(t, f.conn, enums.UserRoleBuyer)
	seller := dbtest.Seller(t, f.conn)
	dbtest.CartItem(t, f.conn, buyer.ID, dbtest.Product(t, f.conn, seller.ID, 10000, 1), 1)
	agg := f.cartOrder(t, buyer.ID)
	event := sessionCompleted(t, agg, seller.ID, "pi_dup")

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- f.svc.HandleEvent(ctx, event)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var paymentCount int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&paymentCount).Error)
	assert.Equal(t, int64(1), paymentCount)

	var user models.User
	require.NoError(t, f.conn.First(&user, "id = ?", seller.ID).Error)
	assert.Equal(t, int64(9500), user.BalanceCents)

	total, err := f.ledger.SellerTotal(ctx, seller.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9500), total)
	assert.Equal(t, float64(4), f.counter(t, "vowmarket_settlement_webhook_events_total", map[string]string{
		"type":    string(stripe.EventTypeCheckoutSessionCompleted),
		"outcome": outcomeDuplicate,
	}))
}

func TestSettlementRejectsBadMetadata(t *testing.T) {
	f := newFixture(t)
	event := sessionEvent(t, map[string]string{
		pkgstripe.MetadataOrderID: "not-a-uuid",
	}, "pi_bad")

	err := f.svc.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var paymentCount int64
	require.NoError(t, f.conn.Model(&models.Payment{}).Count(&paymentCount).Error)
	assert.Zero(t, paymentCount)
}

func TestSettlementRejectsTamperedAmounts(t *testing.T) {
	f := newFixture(t)
	buyer := dbtest.User(t, f.conn, enums.UserRoleBuyer)
	seller := dbtest.Seller(t, f.conn)
	dbtest.CartItem(t, f.conn, buyer.ID, dbtest.Product(t, f.conn, seller.ID, 10000, 1), 1)
	agg := f.cartOrder(t, buyer.ID)

	meta := pkgstripe.SettlementMetadata{
		OrderID:      agg.Order.ID,
		BuyerID:      buyer.ID,
		SellerID:     seller.ID,
		Source:       enums.OrderSourceCart,
		TotalAmount:  100,
		SellerAmount: 95,
		AdminAmount:  5,
	}
	err := f.svc.HandleEvent(context.Background(), sessionEvent(t, meta.Map(), "pi_tampered"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasReason(err, pkgerrors.ReasonInvariantViolation))

	var user models.User
	require.NoError(t, f.conn.First(&user, "id = ?", seller.ID).Error)
	assert.Zero(t, user.BalanceCents)
}

func TestSettlementOfferOrderConsumesOffer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	buyer := dbtest.User(t, f.conn, enums.UserRoleBuyer)
	seller := dbtest.Seller(t, f.conn)
	gown := dbtest.Product(t, f.conn, seller.ID, 10000, 2)
	offer := dbtest.Offer(t, f.conn, buyer.ID, gown, 8000, enums.OfferStatusAccepted)

	catalogRepo := catalog.NewRepository(f.conn)
	accountsRepo := accounts.NewRepository(f.conn)
	aggregator, err := orders.NewAggregator(orders.AggregatorParams{
		Repo:     orders.NewRepository(f.conn),
		Catalog:  func(tx *gorm.DB) orders.CatalogReader { return catalogRepo.WithTx(tx) },
		Sellers:  func(tx *gorm.DB) orders.SellerReader { return accountsRepo.WithTx(tx) },
		Currency: "usd",
	})
	require.NoError(t, err)
	var agg *orders.Aggregate
	require.NoError(t, dbtest.Client(f.conn).WithTx(ctx, func(tx *gorm.DB) error {
		agg, err = aggregator.BuildFromOffer(ctx, tx, buyer.ID, offer.ID)
		return err
	}))

	group, ok := agg.Group(seller.ID)
	require.True(t, ok)
	meta := pkgstripe.SettlementMetadata{
		OrderID:      agg.Order.ID,
		BuyerID:      buyer.ID,
		SellerID:     seller.ID,
		OfferID:      &offer.ID,
		Source:       enums.OrderSourceOffer,
		TotalAmount:  group.Split.Total,
		SellerAmount: group.Split.SellerAmount,
		AdminAmount:  group.Split.AdminAmount,
	}
	require.NoError(t, f.svc.HandleEvent(ctx, sessionEvent(t, meta.Map(), "pi_offer")))

	var offers int64
	require.NoError(t, f.conn.Model(&models.Offer{}).Where("id = ?", offer.ID).Count(&offers).Error)
	assert.Zero(t, offers)

	var product models.Product
	require.NoError(t, f.conn.First(&product, "id = ?", gown.ID).Error)
	assert.Equal(t, 1, product.Quantity)

	var user models.User
	require.NoError(t, f.conn.First(&user, "id = ?", seller.ID).Error)
	assert.Equal(t, int64(7600), user.BalanceCents)
}

func TestAccountUpdatedSyncsCapabilities(t *testing.T) {
	f := newFixture(t)
	seller := dbtest.Seller(t, f.conn)

	raw, err := json.Marshal(map[string]any{
		"id":              *seller.StripeAccountID,
		"object":          "account",
		"charges_enabled": false,
		"payouts_enabled": true,
	})
	require.NoError(t, err)
	event := &stripe.Event{Type: stripe.EventTypeAccountUpdated, Data: &stripe.EventData{Raw: raw}}
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))

	var user models.User
	require.NoError(t, f.conn.First(&user, "id = ?", seller.ID).Error)
	assert.False(t, user.StripeChargesEnabled)
	assert.True(t, user.StripePayoutsEnabled)
}

func TestUnhandledEventIsIgnored(t *testing.T) {
	f := newFixture(t)
	event := &stripe.Event{Type: "invoice.paid", Data: &stripe.EventData{Raw: []byte(`{}`)}}
	require.NoError(t, f.svc.HandleEvent(context.Background(), event))
	assert.Equal(t, float64(1), f.counter(t, "vowmarket_settlement_webhook_events_total", map[string]string{
		"type":    "invoice.paid",
		"outcome": outcomeIgnored,
	}))
}
