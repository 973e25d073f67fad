package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/vowmarket-backend/api/middleware"
	"github.com/angelmondragon/vowmarket-backend/api/responses"
	"github.com/angelmondragon/vowmarket-backend/api/validators"
	"github.com/angelmondragon/vowmarket-backend/internal/refunds"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
)

const maxRefundTextLen = 2000

type RefundService interface {
	File(ctx context.Context, buyerID uuid.UUID, input refunds.FileInput) (*models.RefundRequest, error)
	Decide(ctx context.Context, reviewer refunds.Reviewer, orderItemID uuid.UUID, decision refunds.Decision) (*refunds.Result, error)
}

type refundRequestResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderItemID uuid.UUID `json:"order_item_id"`
	Status      string    `json:"status"`
}

// FileRefund lets a buyer ask for one of their order items to be refunded.
func FileRefund(svc RefundService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		buyerID, _, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input refunds.FileInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Reason = validators.SanitizeString(input.Reason, maxRefundTextLen)

		request, err := svc.File(r.Context(), buyerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, refundRequestResponse{
			ID:          request.ID,
			OrderItemID: request.OrderItemID,
			Status:      string(request.Status),
		})
	}
}

// DecideRefund records an admin's approval or rejection of a pending refund request.
func DecideRefund(svc RefundService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "refund service unavailable"))
			return
		}
		reviewerID, role, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderItemID, err := validators.ParseUUIDParam(r, "orderItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var decision refunds.Decision
		if err := validators.DecodeJSONBody(r, &decision); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if decision.Note != nil {
			note := validators.SanitizeString(*decision.Note, maxRefundTextLen)
			decision.Note = &note
		}

		result, err := svc.Decide(r.Context(), refunds.Reviewer{ID: reviewerID, Role: role}, orderItemID, decision)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
