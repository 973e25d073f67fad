package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/vowmarket-backend/api/middleware"
	"github.com/angelmondragon/vowmarket-backend/api/responses"
	"github.com/angelmondragon/vowmarket-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/vowmarket-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
)

type CheckoutService interface {
	CheckoutCart(ctx context.Context, buyerID uuid.UUID) (*checkoutsvc.Result, error)
	CheckoutOffer(ctx context.Context, buyerID, offerID uuid.UUID) (*checkoutsvc.Result, error)
}

// CheckoutCart turns the buyer's cart into an order with one payment session per seller.
func CheckoutCart(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		buyerID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckoutCart(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutOffer opens a single-item order for an accepted offer.
func CheckoutOffer(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		buyerID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CheckoutOffer(r.Context(), buyerID, offerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
