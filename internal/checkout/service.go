package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/internal/orders"
	"github.com/angelmondragon/vowmarket-backend/pkg/config"
	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/vowmarket-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway creates hosted checkout sessions on the payment provider.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type aggregator interface {
	BuildFromCart(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID, lines []orders.CartLine) (*orders.Aggregate, error)
	BuildFromOffer(ctx context.Context, tx *gorm.DB, buyerID, offerID uuid.UUID) (*orders.Aggregate, error)
}

type cartReader interface {
	FindCartByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error)
}

// Service executes checkout orchestration.
type Service interface {
	CheckoutCart(ctx context.Context, buyerID uuid.UUID) (*Result, error)
	CheckoutOffer(ctx context.Context, buyerID, offerID uuid.UUID) (*Result, error)
}

type ServiceParams struct {
	TransactionRunner txRunner
	Aggregator        aggregator
	Carts             cartReader
	Gateway           Gateway
	Stripe            config.StripeConfig
	Logger            *logger.Logger
}

type service struct {
	tx         txRunner
	aggregator aggregator
	carts      cartReader
	gateway    Gateway
	stripe     config.StripeConfig
	logg       *logger.Logger
}

// SessionResult is the outcome for one seller group. Error is set when the
// provider refused the session; the order still stands.
type SessionResult struct {
	SellerID    uuid.UUID `json:"seller_id"`
	AmountCents int64     `json:"amount_cents"`
	SessionID   string    `json:"session_id,omitempty"`
	URL         string    `json:"url,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Result lists every checkout URL the buyer has to complete.
type Result struct {
	Order    *models.Order   `json:"-"`
	OrderID  uuid.UUID       `json:"order_id"`
	OrderUID string          `json:"order_uid"`
	Total    int64           `json:"total_cents"`
	Sessions []SessionResult `json:"sessions"`
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Aggregator == nil {
		return nil, fmt.Errorf("order aggregator required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart reader required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("stripe gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Stripe.SuccessURL == "" || params.Stripe.CancelURL == "" {
		return nil, fmt.Errorf("checkout success and cancel urls required")
	}
	return &service{
		tx:         params.TransactionRunner,
		aggregator: params.Aggregator,
		carts:      params.Carts,
		gateway:    params.Gateway,
		stripe:     params.Stripe,
		logg:       params.Logger,
	}, nil
}

func (s *service) CheckoutCart(ctx context.Context, buyerID uuid.UUID) (*Result, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	cart, err := s.carts.FindCartByBuyer(ctx, buyerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	lines := make([]orders.CartLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, orders.CartLine{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Size:      item.Size,
		})
	}

	var agg *orders.Aggregate
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		built, err := s.aggregator.BuildFromCart(ctx, tx, buyerID, lines)
		if err != nil {
			return err
		}
		agg = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.openSessions(ctx, agg), nil
}

func (s *service) CheckoutOffer(ctx context.Context, buyerID, offerID uuid.UUID) (*Result, error) {
	var agg *orders.Aggregate
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		built, err := s.aggregator.BuildFromOffer(ctx, tx, buyerID, offerID)
		if err != nil {
			return err
		}
		agg = built
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.openSessions(ctx, agg), nil
}

// openSessions creates one session per seller group. A failed group is
// reported on its own entry and does not affect the others.
func (s *service) openSessions(ctx context.Context, agg *orders.Aggregate) *Result {
	order := agg.Order
	result := &Result{
		Order:    order,
		OrderID:  order.ID,
		OrderUID: order.UID,
		Total:    order.PriceCents,
	}
	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	for _, group := range agg.Groups {
		entry := SessionResult{SellerID: group.SellerID, AmountCents: group.Split.Total}
		params := s.sessionParams(order, group)
		session, err := s.gateway.CreateCheckoutSession(ctx, params)
		if err != nil {
			entry.Error = pkgstripe.ProviderMessage(err)
			s.logg.Error(s.logg.WithSellerID(logCtx, group.SellerID.String()), "checkout session failed", err)
		} else {
			entry.SessionID = session.ID
			entry.URL = session.URL
		}
		result.Sessions = append(result.Sessions, entry)
	}

	s.logg.Info(s.logg.WithField(logCtx, "sessions", len(result.Sessions)), "checkout sessions opened")
	return result
}

func (s *service) sessionParams(order *models.Order, group orders.SellerGroup) *stripe.CheckoutSessionParams {
	metadata := pkgstripe.SettlementMetadata{
		OrderID:      order.ID,
		BuyerID:      order.BuyerID,
		SellerID:     group.SellerID,
		OfferID:      order.OfferID,
		Source:       order.Source,
		TotalAmount:  group.Split.Total,
		SellerAmount: group.Split.SellerAmount,
		AdminAmount:  group.Split.AdminAmount,
	}.Map()

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(group.Items))
	for _, item := range group.Items {
		product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(item.ProductName),
		}
		if item.Description != "" {
			product.Description = stripe.String(item.Description)
		}
		if item.ImageURL != "" {
			product.Images = []*string{stripe.String(item.ImageURL)}
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(order.Currency),
				UnitAmount:  stripe.Int64(item.ItemPriceCents),
				ProductData: product,
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.stripe.SuccessURL),
		CancelURL:         stripe.String(s.stripe.CancelURL),
		ClientReferenceID: stripe.String(order.UID),
		LineItems:         lineItems,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod:        stripe.String(string(stripe.PaymentIntentCaptureMethodManual)),
			ApplicationFeeAmount: stripe.Int64(group.Split.AdminAmount),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(group.StripeAccountID),
			},
			Metadata: metadata,
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	params.SetIdempotencyKey(pkgstripe.CheckoutIdempotencyKey(order.ID, group.SellerID))
	return params
}
