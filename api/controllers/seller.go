package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vowmarket-backend/api/middleware"
	"github.com/angelmondragon/vowmarket-backend/api/responses"
	"github.com/angelmondragon/vowmarket-backend/api/validators"
	"github.com/angelmondragon/vowmarket-backend/internal/accounts"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
)

type AccountService interface {
	Onboard(ctx context.Context, sellerID uuid.UUID) (*accounts.OnboardResult, error)
	RefreshStatus(ctx context.Context, sellerID uuid.UUID) (*accounts.StatusResult, error)
	Balance(ctx context.Context, sellerID uuid.UUID) (*accounts.BalanceResult, error)
}

type LedgerReader interface {
	History(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEvent, error)
}

// SellerConnect starts or resumes payout account onboarding.
func SellerConnect(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return sellerHandler(logg, func(r *http.Request, sellerID uuid.UUID) (any, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable")
		}
		return svc.Onboard(r.Context(), sellerID)
	})
}

// SellerConnectRefresh re-reads the payout account capabilities from the provider.
func SellerConnectRefresh(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return sellerHandler(logg, func(r *http.Request, sellerID uuid.UUID) (any, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable")
		}
		return svc.RefreshStatus(r.Context(), sellerID)
	})
}

func SellerBalance(svc AccountService, logg *logger.Logger) http.HandlerFunc {
	return sellerHandler(logg, func(r *http.Request, sellerID uuid.UUID) (any, error) {
		if svc == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "account service unavailable")
		}
		return svc.Balance(r.Context(), sellerID)
	})
}

type ledgerEventResponse struct {
	ID          uuid.UUID  `json:"id"`
	OrderID     uuid.UUID  `json:"order_id"`
	PaymentID   *uuid.UUID `json:"payment_id,omitempty"`
	OrderItemID *uuid.UUID `json:"order_item_id,omitempty"`
	Type        string     `json:"type"`
	AmountCents int64      `json:"amount_cents"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SellerLedger lists the seller's latest balance movements.
func SellerLedger(ledger LedgerReader, logg *logger.Logger) http.HandlerFunc {
	return sellerHandler(logg, func(r *http.Request, sellerID uuid.UUID) (any, error) {
		if ledger == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable")
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			return nil, err
		}
		events, err := ledger.History(r.Context(), sellerID, limit)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ledger events")
		}
		out := make([]ledgerEventResponse, 0, len(events))
		for _, e := range events {
			out = append(out, ledgerEventResponse{
				ID:          e.ID,
				OrderID:     e.OrderID,
				PaymentID:   e.PaymentID,
				OrderItemID: e.OrderItemID,
				Type:        string(e.Type),
				AmountCents: e.AmountCents,
				CreatedAt:   e.CreatedAt,
			})
		}
		return out, nil
	})
}

func sellerHandler(logg *logger.Logger, fn func(r *http.Request, sellerID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithSellerID(ctx, sellerID.String())
		}
		data, err := fn(r.WithContext(ctx), sellerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, data)
	}
}
