package accounts

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/config"
	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox/payloads"
	pkgstripe "github.com/angelmondragon/vowmarket-backend/pkg/stripe"
)

// Gateway is the subset of the payment provider used for connected accounts.
type Gateway interface {
	CreateAccount(ctx context.Context, params *stripe.AccountParams) (*stripe.Account, error)
	GetAccount(ctx context.Context, id string) (*stripe.Account, error)
	CreateAccountLink(ctx context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error)
	GetConnectedBalance(ctx context.Context, accountID string) (*stripe.Balance, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	Gateway           Gateway
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Stripe            config.StripeConfig
	Currency          string
	Logger            *logger.Logger
}

// Service manages seller payout accounts on the payment provider.
type Service struct {
	repo     Repository
	gateway  Gateway
	txRunner txRunner
	outbox   outbox.Emitter
	stripe   config.StripeConfig
	currency string
	logg     *logger.Logger
}

// OnboardResult is the hosted onboarding link for a seller.
type OnboardResult struct {
	StripeAccountID string    `json:"stripe_account_id"`
	URL             string    `json:"url"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// StatusResult mirrors the seller's provider capabilities.
type StatusResult struct {
	StripeAccountID string `json:"stripe_account_id"`
	ChargesEnabled  bool   `json:"charges_enabled"`
	PayoutsEnabled  bool   `json:"payouts_enabled"`
}

// BalanceResult combines the local running balance with the connected
// account balance held by the provider.
type BalanceResult struct {
	SellerID               uuid.UUID `json:"seller_id"`
	BalanceCents           int64     `json:"balance_cents"`
	Currency               string    `json:"currency"`
	StripeAccountID        string    `json:"stripe_account_id,omitempty"`
	ProviderAvailableCents int64     `json:"provider_available_cents"`
	ProviderPendingCents   int64     `json:"provider_pending_cents"`
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	}
	if params.Gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe gateway required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		repo:     params.Repo,
		gateway:  params.Gateway,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		stripe:   params.Stripe,
		currency: currency,
		logg:     params.Logger,
	}, nil
}

// Onboard creates the seller's Express account when missing and returns a
// fresh onboarding link.
func (s *Service) Onboard(ctx context.Context, sellerID uuid.UUID) (*OnboardResult, error) {
	seller, err := s.loadSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	accountID := ""
	if seller.StripeAccountID != nil {
		accountID = *seller.StripeAccountID
	}
	if accountID == "" {
		params := &stripe.AccountParams{
			Type:  stripe.String(string(stripe.AccountTypeExpress)),
			Email: stripe.String(seller.Email),
			Capabilities: &stripe.AccountCapabilitiesParams{
				CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
				Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
			},
		}
		params.AddMetadata("user_id", seller.ID.String())
		params.SetIdempotencyKey(pkgstripe.AccountIdempotencyKey(seller.ID))

		acct, err := s.gateway.CreateAccount(ctx, params)
		if err != nil {
			return nil, pkgerrors.ProviderFailure(err, pkgstripe.ProviderMessage(err))
		}
		accountID = acct.ID
		if err := s.repo.SetStripeAccount(ctx, seller.ID, accountID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store stripe account")
		}
		logCtx := s.logg.WithSellerID(ctx, seller.ID.String())
		s.logg.Info(s.logg.WithField(logCtx, "stripe_account_id", accountID), "connected account created")
	}

	link, err := s.gateway.CreateAccountLink(ctx, &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(s.stripe.ConnectRefreshURL),
		ReturnURL:  stripe.String(s.stripe.ConnectReturnURL),
		Type:       stripe.String("account_onboarding"),
	})
	if err != nil {
		return nil, pkgerrors.ProviderFailure(err, pkgstripe.ProviderMessage(err))
	}

	return &OnboardResult{
		StripeAccountID: accountID,
		URL:             link.URL,
		ExpiresAt:       time.Unix(link.ExpiresAt, 0).UTC(),
	}, nil
}

// RefreshStatus pulls the connected account capabilities from the provider.
func (s *Service) RefreshStatus(ctx context.Context, sellerID uuid.UUID) (*StatusResult, error) {
	seller, err := s.loadSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" {
		return nil, pkgerrors.MissingPayoutAccount([]string{seller.ID.String()})
	}

	acct, err := s.gateway.GetAccount(ctx, *seller.StripeAccountID)
	if err != nil {
		return nil, pkgerrors.ProviderFailure(err, pkgstripe.ProviderMessage(err))
	}
	if err := s.SyncAccount(ctx, acct); err != nil {
		return nil, err
	}
	return &StatusResult{
		StripeAccountID: acct.ID,
		ChargesEnabled:  acct.ChargesEnabled,
		PayoutsEnabled:  acct.PayoutsEnabled,
	}, nil
}

// SyncAccount stores the capability flags of a connected account. Unknown
// accounts are ignored.
func (s *Service) SyncAccount(ctx context.Context, acct *stripe.Account) error {
	if acct == nil || acct.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe account is required")
	}
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		seller, err := repo.FindByStripeAccountID(ctx, acct.ID)
		if err != nil {
			if db.IsNotFound(err) {
				s.logg.Warn(s.logg.WithField(ctx, "stripe_account_id", acct.ID), "account update for unknown connected account")
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller by account")
		}
		if seller.StripeChargesEnabled == acct.ChargesEnabled && seller.StripePayoutsEnabled == acct.PayoutsEnabled {
			return nil
		}
		if err := repo.UpdateCapabilities(ctx, seller.ID, acct.ChargesEnabled, acct.PayoutsEnabled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update seller capabilities")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSellerAccountUpdated,
			AggregateType: enums.AggregateSellerAccount,
			AggregateID:   seller.ID,
			Data: payloads.SellerAccountUpdatedEvent{
				SellerID:        seller.ID,
				StripeAccountID: acct.ID,
				ChargesEnabled:  acct.ChargesEnabled,
				PayoutsEnabled:  acct.PayoutsEnabled,
			},
		})
	})
}

// Balance reports the seller's settled balance. The provider balance is best
// effort and left at zero when the lookup fails.
func (s *Service) Balance(ctx context.Context, sellerID uuid.UUID) (*BalanceResult, error) {
	seller, err := s.loadSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	result := &BalanceResult{
		SellerID:     seller.ID,
		BalanceCents: seller.BalanceCents,
		Currency:     s.currency,
	}
	if seller.StripeAccountID == nil || *seller.StripeAccountID == "" {
		return result, nil
	}
	result.StripeAccountID = *seller.StripeAccountID

	bal, err := s.gateway.GetConnectedBalance(ctx, *seller.StripeAccountID)
	if err != nil {
		s.logg.Warn(s.logg.WithSellerID(ctx, seller.ID.String()), "connected balance lookup failed: "+pkgstripe.ProviderMessage(err))
		return result, nil
	}
	result.ProviderAvailableCents = sumForCurrency(bal.Available, s.currency)
	result.ProviderPendingCents = sumForCurrency(bal.Pending, s.currency)
	return result, nil
}

func (s *Service) loadSeller(ctx context.Context, sellerID uuid.UUID) (*models.User, error) {
	seller, err := s.repo.FindByID(ctx, sellerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller")
	}
	if seller.Role != enums.UserRoleSeller {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "user is not a seller")
	}
	return seller, nil
}

func sumForCurrency(amounts []*stripe.BalanceAmount, currency string) int64 {
	var total int64
	for _, amount := range amounts {
		if amount == nil || !strings.EqualFold(string(amount.Currency), currency) {
			continue
		}
		total += amount.Amount
	}
	return total
}
