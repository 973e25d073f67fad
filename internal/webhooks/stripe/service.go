package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/internal/accounts"
	"github.com/angelmondragon/vowmarket-backend/internal/catalog"
	"github.com/angelmondragon/vowmarket-backend/internal/ledger"
	"github.com/angelmondragon/vowmarket-backend/internal/orders"
	"github.com/angelmondragon/vowmarket-backend/internal/payments"
	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/metrics"
	"github.com/angelmondragon/vowmarket-backend/pkg/money"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox/payloads"
	pkgstripe "github.com/angelmondragon/vowmarket-backend/pkg/stripe"
)

const (
	outcomeProcessed = "processed"
	outcomeDuplicate = "duplicate"
	outcomeIgnored   = "ignored"
	outcomeFailed    = "failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type accountSyncer interface {
	SyncAccount(ctx context.Context, acct *stripe.Account) error
}

type ServiceParams struct {
	TransactionRunner txRunner
	Payments          payments.Repository
	Orders            orders.Repository
	Catalog           catalog.Repository
	Accounts          accounts.Repository
	Ledger            ledger.Service
	AccountSync       accountSyncer
	Outbox            outbox.Emitter
	Metrics           *metrics.SettlementMetrics
	Logger            *logger.Logger
}

// Service settles seller groups from provider webhook events.
type Service struct {
	txRunner    txRunner
	payments    payments.Repository
	orders      orders.Repository
	catalog     catalog.Repository
	accounts    accounts.Repository
	ledger      ledger.Service
	accountSync accountSyncer
	outbox      outbox.Emitter
	metrics     *metrics.SettlementMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.TransactionRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	case params.Catalog == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "catalog repo required")
	case params.Accounts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.AccountSync == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "account sync required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		txRunner:    params.TransactionRunner,
		payments:    params.Payments,
		orders:      params.Orders,
		catalog:     params.Catalog,
		accounts:    params.Accounts,
		ledger:      params.Ledger,
		accountSync: params.AccountSync,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)

	var (
		outcome string
		err     error
	)
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.metrics.ObserveWebhook(eventType, outcomeFailed)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		outcome, err = s.settleSession(ctx, &session)
	case stripe.EventTypeAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			s.metrics.ObserveWebhook(eventType, outcomeFailed)
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode account")
		}
		outcome, err = outcomeProcessed, s.accountSync.SyncAccount(ctx, &acct)
	default:
		outcome = outcomeIgnored
	}

	if err != nil {
		outcome = outcomeFailed
	}
	s.metrics.ObserveWebhook(eventType, outcome)
	return err
}

// settleSession moves one (order, seller) pair from unpaid to paid. Every
// mutation shares one transaction; a duplicate delivery changes nothing.
func (s *Service) settleSession(ctx context.Context, session *stripe.CheckoutSession) (string, error) {
	meta, err := pkgstripe.ParseSettlementMetadata(session.Metadata)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid checkout session metadata")
	}
	if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout session has no payment intent")
	}

	logCtx := s.logg.WithOrderID(ctx, meta.OrderID.String())
	logCtx = s.logg.WithSellerID(logCtx, meta.SellerID.String())

	var (
		duplicate bool
		credited  int64
	)
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindOrderForUpdate(ctx, meta.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		if order.BuyerID != meta.BuyerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout buyer does not match order")
		}

		items, err := s.orders.WithTx(tx).ListItemsBySeller(ctx, order.ID, meta.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "order has no items for seller")
		}
		split, err := groupSplit(items)
		if err != nil {
			return err
		}
		if split.Total != meta.TotalAmount || split.SellerAmount != meta.SellerAmount {
			s.logg.Error(s.logg.WithField(logCtx, "invariant", "session_amounts"), "session metadata disagrees with order items", nil)
			return pkgerrors.New(pkgerrors.CodeValidation, "checkout amounts do not match order").
				WithReason(pkgerrors.ReasonInvariantViolation)
		}

		seller, err := s.accounts.WithTx(tx).FindByID(ctx, meta.SellerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
		}
		accountID := ""
		if seller.StripeAccountID != nil {
			accountID = *seller.StripeAccountID
		}

		payment := &models.Payment{
			OrderID:               order.ID,
			SellerID:              meta.SellerID,
			BuyerID:               order.BuyerID,
			StripePaymentIntentID: session.PaymentIntent.ID,
			StripeAccountID:       accountID,
			StripeSessionID:       session.ID,
			AmountCents:           split.Total,
			SellerAmountCents:     split.SellerAmount,
			AdminAmountCents:      split.AdminAmount,
			Currency:              order.Currency,
			Status:                enums.PaymentStatusSucceeded,
			CaptureStatus:         enums.CaptureStatusPending,
		}
		inserted, err := s.payments.WithTx(tx).InsertIfAbsent(ctx, payment)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert payment")
		}
		if !inserted {
			duplicate = true
			return nil
		}

		if err := s.consumeInventory(logCtx, tx, order, meta, items); err != nil {
			return err
		}

		if err := s.accounts.WithTx(tx).Credit(ctx, meta.SellerID, split.SellerAmount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit seller balance")
		}
		paymentID := payment.ID
		if _, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
			SellerID:    meta.SellerID,
			OrderID:     order.ID,
			PaymentID:   &paymentID,
			Type:        enums.LedgerEventTypeSellerCredit,
			AmountCents: split.SellerAmount,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record seller credit")
		}
		credited = split.SellerAmount

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentSettled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentSettledEvent{
				PaymentID:         payment.ID,
				OrderID:           order.ID,
				BuyerID:           order.BuyerID,
				SellerID:          meta.SellerID,
				Source:            order.Source,
				AmountCents:       split.Total,
				SellerAmountCents: split.SellerAmount,
				AdminAmountCents:  split.AdminAmount,
			},
		}); err != nil {
			return err
		}

		return s.evaluateOrder(logCtx, tx, order)
	})
	if err != nil {
		s.logg.Error(logCtx, "checkout settlement failed", err)
		return "", err
	}
	if duplicate {
		s.logg.Info(logCtx, "duplicate checkout settlement ignored")
		return outcomeDuplicate, nil
	}
	s.metrics.AddCredit(credited)
	s.logg.Info(s.logg.WithField(logCtx, "seller_amount_cents", credited), "checkout settled")
	return outcomeProcessed, nil
}

// consumeInventory applies the stock side effects of a paid seller group.
// Stock that ran out between checkout and payment is logged, not rejected:
// the buyer has already been charged.
func (s *Service) consumeInventory(ctx context.Context, tx *gorm.DB, order *models.Order, meta pkgstripe.SettlementMetadata, items []models.OrderItem) error {
	repo := s.catalog.WithTx(tx)
	productIDs := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		quantity := item.Quantity
		if order.Source == enums.OrderSourceOffer {
			quantity = 1
		}
		if err := repo.DecrementInventory(ctx, item.ProductID, quantity); err != nil {
			if !errors.Is(err, catalog.ErrInsufficientInventory) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement inventory")
			}
			s.logg.Warn(s.logg.WithField(ctx, "product_id", item.ProductID.String()), "inventory oversold at settlement")
		}
		productIDs = append(productIDs, item.ProductID)
	}

	switch order.Source {
	case enums.OrderSourceCart:
		for _, productID := range productIDs {
			if _, err := repo.DeletePendingOffers(ctx, order.BuyerID, productID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete superseded offers")
			}
		}
		if err := repo.RemoveCartProducts(ctx, order.BuyerID, productIDs); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear purchased cart items")
		}
	case enums.OrderSourceOffer:
		if meta.OfferID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "offer id missing")
		}
		if err := repo.DeleteOffer(ctx, *meta.OfferID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete offer")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order source %q", order.Source))
	}
	return nil
}

// evaluateOrder promotes the order once every seller on it has a payment. A
// completed order missing a payment is reported and left untouched.
func (s *Service) evaluateOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	sellerIDs, err := s.orders.WithTx(tx).DistinctSellerIDs(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order sellers")
	}
	rows, err := s.payments.WithTx(tx).ListByOrder(ctx, order.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order payments")
	}
	paid := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		switch row.Status {
		case enums.PaymentStatusSucceeded, enums.PaymentStatusRefunded:
			paid[row.SellerID] = struct{}{}
		default:
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown payment status %q", row.Status))
		}
	}
	complete := len(sellerIDs) > 0
	for _, sellerID := range sellerIDs {
		if _, ok := paid[sellerID]; !ok {
			complete = false
			break
		}
	}

	switch order.Status {
	case enums.OrderStatusCompleted:
		if !complete {
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"invariant": "order_completion",
				"sellers":   len(sellerIDs),
				"payments":  len(paid),
			}), "completed order is missing seller payments", nil)
		}
		return nil
	case enums.OrderStatusPending:
		if !complete {
			return nil
		}
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown order status %q", order.Status))
	}

	if err := s.orders.WithTx(tx).UpdateOrderStatus(ctx, order.ID, enums.OrderStatusCompleted); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
	}
	s.logg.Info(ctx, "order completed")
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCompleted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderCompletedEvent{
			OrderID:    order.ID,
			OrderUID:   order.UID,
			BuyerID:    order.BuyerID,
			PriceCents: order.PriceCents,
		},
	})
}

// groupSplit recomputes the seller group's split from its persisted items,
// summing the per-item splits that refunds later reverse one by one.
func groupSplit(items []models.OrderItem) (money.Split, error) {
	var split money.Split
	for _, item := range items {
		if item.SellerAmountCents < 0 || item.AdminAmountCents < 0 ||
			item.SellerAmountCents+item.AdminAmountCents != item.PriceCents {
			return money.Split{}, pkgerrors.New(pkgerrors.CodeValidation, "order item split is inconsistent").
				WithReason(pkgerrors.ReasonInvariantViolation)
		}
		split = split.Plus(money.Split{
			Total:        item.PriceCents,
			SellerAmount: item.SellerAmountCents,
			AdminAmount:  item.AdminAmountCents,
		})
	}
	return split, nil
}
