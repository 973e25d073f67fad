package refunds

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/internal/accounts"
	"github.com/angelmondragon/vowmarket-backend/internal/ledger"
	"github.com/angelmondragon/vowmarket-backend/internal/orders"
	"github.com/angelmondragon/vowmarket-backend/internal/payments"
	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
	"github.com/angelmondragon/vowmarket-backend/pkg/logger"
	"github.com/angelmondragon/vowmarket-backend/pkg/metrics"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox"
	"github.com/angelmondragon/vowmarket-backend/pkg/outbox/payloads"
	pkgstripe "github.com/angelmondragon/vowmarket-backend/pkg/stripe"
)

// Gateway is the provider surface used to return buyer funds.
type Gateway interface {
	GetPaymentIntent(ctx context.Context, id string) (*stripe.PaymentIntent, error)
	CapturePaymentIntent(ctx context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error)
	CreateRefund(ctx context.Context, params *stripe.RefundParams) (*stripe.Refund, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// FileInput is a buyer's claim against one order item.
type FileInput struct {
	OrderItemID uuid.UUID `json:"order_item_id" validate:"required"`
	Reason      string    `json:"reason" validate:"required,min=3,max=2000"`
	EvidenceURL *string   `json:"evidence_url,omitempty" validate:"omitempty,url"`
}

// Reviewer identifies who decides a refund request.
type Reviewer struct {
	ID   uuid.UUID
	Role enums.UserRole
}

// Decision is the reviewer verdict on a pending request.
type Decision struct {
	Approve bool    `json:"approve"`
	Note    *string `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// Result summarizes a decided refund request.
type Result struct {
	RefundRequestID      uuid.UUID                 `json:"refund_request_id"`
	OrderItemID          uuid.UUID                 `json:"order_item_id"`
	Status               enums.RefundRequestStatus `json:"status"`
	StripeRefundID       string                    `json:"stripe_refund_id,omitempty"`
	RefundAmountCents    int64                     `json:"refund_amount_cents"`
	PlatformFeeCents     int64                     `json:"platform_fee_cents"`
	SellerDeductionCents int64                     `json:"seller_deduction_cents"`
	PaymentFullyRefunded bool                      `json:"payment_fully_refunded"`
}

type ServiceParams struct {
	Repo              Repository
	Orders            orders.Repository
	Payments          payments.Repository
	Accounts          accounts.Repository
	Ledger            ledger.Service
	Gateway           Gateway
	TransactionRunner txRunner
	Outbox            outbox.Emitter
	Metrics           *metrics.SettlementMetrics
	Logger            *logger.Logger
}

// Service files and decides buyer refund requests.
type Service struct {
	repo     Repository
	orders   orders.Repository
	payments payments.Repository
	accounts accounts.Repository
	ledger   ledger.Service
	gateway  Gateway
	txRunner txRunner
	outbox   outbox.Emitter
	metrics  *metrics.SettlementMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refunds repo required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	case params.Payments == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repo required")
	case params.Accounts == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "accounts repo required")
	case params.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "ledger service required")
	case params.Gateway == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe gateway required")
	case params.TransactionRunner == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:     params.Repo,
		orders:   params.Orders,
		payments: params.Payments,
		accounts: params.Accounts,
		ledger:   params.Ledger,
		gateway:  params.Gateway,
		txRunner: params.TransactionRunner,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

// File opens a pending refund request for a paid order item of the buyer.
func (s *Service) File(ctx context.Context, buyerID uuid.UUID, input FileInput) (*models.RefundRequest, error) {
	reason := strings.TrimSpace(input.Reason)
	if buyerID == uuid.Nil || input.OrderItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and order item are required")
	}
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required")
	}

	var request *models.RefundRequest
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		item, err := ordersRepo.FindItemForUpdate(ctx, input.OrderItemID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order item")
		}
		order, err := ordersRepo.FindOrder(ctx, item.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.BuyerID != buyerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
		}

		switch item.RefundStatus {
		case enums.RefundStatusNone:
		case enums.RefundStatusPending:
			return pkgerrors.New(pkgerrors.CodeConflict, "a refund request is already pending for this item")
		case enums.RefundStatusRefunded:
			return pkgerrors.AlreadyProcessed("order item")
		default:
			return pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unknown refund status %q", item.RefundStatus))
		}

		payment, err := s.payments.WithTx(tx).FindByOrderAndSeller(ctx, item.OrderID, item.SellerID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "order item has not been paid")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		request = &models.RefundRequest{
			PaymentID:   payment.ID,
			OrderID:     item.OrderID,
			OrderItemID: item.ID,
			BuyerID:     buyerID,
			SellerID:    item.SellerID,
			Reason:      reason,
			EvidenceURL: input.EvidenceURL,
			Status:      enums.RefundRequestStatusPending,
		}
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "a refund request is already pending for this item")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund request")
		}
		if err := ordersRepo.UpdateItemRefundStatus(ctx, item.ID, enums.RefundStatusPending); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item refund pending")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefundRequest,
			AggregateID:   request.ID,
			Data: payloads.RefundRequestedEvent{
				RefundRequestID: request.ID,
				OrderItemID:     item.ID,
				BuyerID:         buyerID,
				SellerID:        item.SellerID,
				Reason:          reason,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"refund_request_id": request.ID.String(),
		"order_item_id":     request.OrderItemID.String(),
	}), "refund request filed")
	return request, nil
}

// Decide applies a reviewer decision to the pending request of an order item.
// Approval refunds exactly the item's price; the provider call and every local
// write share one transaction so a provider failure leaves the request pending.
func (s *Service) Decide(ctx context.Context, reviewer Reviewer, orderItemID uuid.UUID, decision Decision) (*Result, error) {
	if reviewer.Role != enums.UserRoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only admins can review refund requests")
	}
	logCtx := s.logg.WithUserID(ctx, reviewer.ID.String())
	logCtx = s.logg.WithField(logCtx, "order_item_id", orderItemID.String())

	var result *Result
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := s.lockPending(ctx, tx, orderItemID)
		if err != nil {
			return err
		}
		if request.BuyerID == reviewer.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "reviewers cannot decide their own refund requests")
		}
		if !decision.Approve {
			result, err = s.reject(ctx, tx, reviewer, request, decision)
			return err
		}
		result, err = s.approve(logCtx, tx, reviewer, request, decision)
		return err
	})
	if err != nil {
		s.logg.Error(logCtx, "refund decision failed", err)
		return nil, err
	}
	if result.Status == enums.RefundRequestStatusApproved {
		s.metrics.AddRefund(result.RefundAmountCents)
	}
	s.logg.Info(s.logg.WithField(logCtx, "status", result.Status), "refund request decided")
	return result, nil
}

func (s *Service) lockPending(ctx context.Context, tx *gorm.DB, orderItemID uuid.UUID) (*models.RefundRequest, error) {
	repo := s.repo.WithTx(tx)
	request, err := repo.FindPendingByItemForUpdate(ctx, orderItemID)
	if err == nil {
		return request, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock refund request")
	}
	if _, err := repo.FindLatestByItem(ctx, orderItemID); err == nil {
		return nil, pkgerrors.AlreadyProcessed("refund request")
	} else if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load refund request")
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "refund request not found")
}

func (s *Service) reject(ctx context.Context, tx *gorm.DB, reviewer Reviewer, request *models.RefundRequest, decision Decision) (*Result, error) {
	if err := s.repo.WithTx(tx).MarkRejected(ctx, request.ID, reviewer.ID, decision.Note, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject refund request")
	}
	if err := s.orders.WithTx(tx).UpdateItemRefundStatus(ctx, request.OrderItemID, enums.RefundStatusNone); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset item refund status")
	}
	note := ""
	if decision.Note != nil {
		note = *decision.Note
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundRejected,
		AggregateType: enums.AggregateRefundRequest,
		AggregateID:   request.ID,
		Data: payloads.RefundRejectedEvent{
			RefundRequestID: request.ID,
			OrderItemID:     request.OrderItemID,
			BuyerID:         request.BuyerID,
			Note:            note,
		},
	}); err != nil {
		return nil, err
	}
	return &Result{
		RefundRequestID: request.ID,
		OrderItemID:     request.OrderItemID,
		Status:          enums.RefundRequestStatusRejected,
	}, nil
}

func (s *Service) approve(ctx context.Context, tx *gorm.DB, reviewer Reviewer, request *models.RefundRequest, decision Decision) (*Result, error) {
	paymentsRepo := s.payments.WithTx(tx)
	ordersRepo := s.orders.WithTx(tx)

	payment, err := paymentsRepo.FindByIDForUpdate(ctx, request.PaymentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock payment")
	}
	item, err := ordersRepo.FindItemForUpdate(ctx, request.OrderItemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order item")
	}
	ctx = s.logg.WithOrderID(ctx, payment.OrderID.String())
	ctx = s.logg.WithSellerID(ctx, payment.SellerID.String())

	if err := s.ensureCaptured(ctx, paymentsRepo, payment); err != nil {
		return nil, err
	}

	params := &stripe.RefundParams{
		PaymentIntent:        stripe.String(payment.StripePaymentIntentID),
		Amount:               stripe.Int64(item.PriceCents),
		ReverseTransfer:      stripe.Bool(true),
		RefundApplicationFee: stripe.Bool(true),
	}
	params.SetIdempotencyKey(pkgstripe.RefundIdempotencyKey(request.ID))
	params.AddMetadata(pkgstripe.MetadataOrderID, payment.OrderID.String())
	params.AddMetadata("order_item_id", item.ID.String())
	params.AddMetadata("refund_request_id", request.ID.String())
	refund, err := s.gateway.CreateRefund(ctx, params)
	if err != nil {
		return nil, pkgerrors.ProviderFailure(err, pkgstripe.ProviderMessage(err))
	}

	if err := s.accounts.WithTx(tx).Debit(ctx, payment.SellerID, item.SellerAmountCents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit seller balance")
	}
	paymentID, itemID := payment.ID, item.ID
	meta, err := json.Marshal(map[string]string{"stripe_refund_id": refund.ID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode ledger metadata")
	}
	if _, err := s.ledger.WithTx(tx).RecordEvent(ctx, ledger.RecordLedgerEventInput{
		SellerID:    payment.SellerID,
		OrderID:     payment.OrderID,
		PaymentID:   &paymentID,
		OrderItemID: &itemID,
		Type:        enums.LedgerEventTypeRefundDebit,
		AmountCents: item.SellerAmountCents,
		Metadata:    meta,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refund debit")
	}

	outcome := ApprovalOutcome{
		ReviewerID:           reviewer.ID,
		ReviewNote:           decision.Note,
		StripeRefundID:       refund.ID,
		RefundAmountCents:    item.PriceCents,
		PlatformFeeCents:     item.AdminAmountCents,
		SellerDeductionCents: item.SellerAmountCents,
		RefundedAt:           s.now().UTC(),
	}
	if err := s.repo.WithTx(tx).MarkApproved(ctx, request.ID, outcome); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve refund request")
	}
	if err := ordersRepo.UpdateItemRefundStatus(ctx, item.ID, enums.RefundStatusRefunded); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark item refunded")
	}

	fully, err := s.groupFullyRefunded(ctx, ordersRepo, payment)
	if err != nil {
		return nil, err
	}
	if err := paymentsRepo.AddRefunded(ctx, payment.ID, item.PriceCents, fully); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment refund totals")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventRefundProcessed,
		AggregateType: enums.AggregateRefundRequest,
		AggregateID:   request.ID,
		Data: payloads.RefundProcessedEvent{
			RefundRequestID:      request.ID,
			OrderItemID:          item.ID,
			PaymentID:            payment.ID,
			BuyerID:              request.BuyerID,
			SellerID:             payment.SellerID,
			StripeRefundID:       refund.ID,
			RefundAmountCents:    item.PriceCents,
			SellerDeductionCents: item.SellerAmountCents,
			PaymentFullyRefunded: fully,
		},
	}); err != nil {
		return nil, err
	}

	return &Result{
		RefundRequestID:      request.ID,
		OrderItemID:          item.ID,
		Status:               enums.RefundRequestStatusApproved,
		StripeRefundID:       refund.ID,
		RefundAmountCents:    outcome.RefundAmountCents,
		PlatformFeeCents:     outcome.PlatformFeeCents,
		SellerDeductionCents: outcome.SellerDeductionCents,
		PaymentFullyRefunded: fully,
	}, nil
}

// ensureCaptured captures held funds before a refund. Funds still on hold
// cannot be refunded by the provider.
func (s *Service) ensureCaptured(ctx context.Context, repo payments.Repository, payment *models.Payment) error {
	intent, err := s.gateway.GetPaymentIntent(ctx, payment.StripePaymentIntentID)
	if err != nil {
		return pkgerrors.ProviderFailure(err, pkgstripe.ProviderMessage(err))
	}

	switch intent.Status {
	case stripe.PaymentIntentStatusRequiresCapture:
		params := &stripe.PaymentIntentCaptureParams{}
		params.SetIdempotencyKey(pkgstripe.CaptureIdempotencyKey(payment.ID))
		if _, err := s.gateway.CapturePaymentIntent(ctx, payment.StripePaymentIntentID, params); err != nil {
			return pkgerrors.ProviderFailure(err, pkgstripe.ProviderMessage(err))
		}
		s.logg.Info(ctx, "captured held payment ahead of refund")
	case stripe.PaymentIntentStatusSucceeded:
	default:
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment intent is %s and cannot be refunded", intent.Status))
	}

	if payment.CaptureStatus == enums.CaptureStatusCaptured {
		return nil
	}
	if err := repo.MarkCaptured(ctx, payment.ID, s.now().UTC()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment captured")
	}
	return nil
}

func (s *Service) groupFullyRefunded(ctx context.Context, repo orders.Repository, payment *models.Payment) (bool, error) {
	items, err := repo.ListItemsBySeller(ctx, payment.OrderID, payment.SellerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load seller items")
	}
	for _, item := range items {
		if item.RefundStatus != enums.RefundStatusRefunded {
			return false, nil
		}
	}
	return len(items) > 0, nil
}
