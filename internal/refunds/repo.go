package refunds

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Repository persists buyer refund requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.RefundRequest) error
	FindPendingByItemForUpdate(ctx context.Context, orderItemID uuid.UUID) (*models.RefundRequest, error)
	FindLatestByItem(ctx context.Context, orderItemID uuid.UUID) (*models.RefundRequest, error)
	MarkRejected(ctx context.Context, id, reviewerID uuid.UUID, note *string, at time.Time) error
	MarkApproved(ctx context.Context, id uuid.UUID, outcome ApprovalOutcome) error
}

// ApprovalOutcome is the money movement recorded on an approved request.
type ApprovalOutcome struct {
	ReviewerID           uuid.UUID
	ReviewNote           *string
	StripeRefundID       string
	RefundAmountCents    int64
	PlatformFeeCents     int64
	SellerDeductionCents int64
	RefundedAt           time.Time
}

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.RefundRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindPendingByItemForUpdate(ctx context.Context, orderItemID uuid.UUID) (*models.RefundRequest, error) {
	var request models.RefundRequest
	err := db.ForUpdate(r.db.WithContext(ctx)).
		Where("order_item_id = ? AND status = ?", orderItemID, enums.RefundRequestStatusPending).
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindLatestByItem(ctx context.Context, orderItemID uuid.UUID) (*models.RefundRequest, error) {
	var request models.RefundRequest
	err := r.db.WithContext(ctx).
		Where("order_item_id = ?", orderItemID).
		Order("created_at DESC").
		First(&request).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) MarkRejected(ctx context.Context, id, reviewerID uuid.UUID, note *string, at time.Time) error {
	return r.updatePending(ctx, id, map[string]any{
		"status":      enums.RefundRequestStatusRejected,
		"reviewer_id": reviewerID,
		"review_note": note,
		"refunded_at": at,
	})
}

func (r *repository) MarkApproved(ctx context.Context, id uuid.UUID, outcome ApprovalOutcome) error {
	return r.updatePending(ctx, id, map[string]any{
		"status":                 enums.RefundRequestStatusApproved,
		"reviewer_id":            outcome.ReviewerID,
		"review_note":            outcome.ReviewNote,
		"stripe_refund_id":       outcome.StripeRefundID,
		"refund_amount_cents":    outcome.RefundAmountCents,
		"platform_fee_cents":     outcome.PlatformFeeCents,
		"seller_deduction_cents": outcome.SellerDeductionCents,
		"refunded_at":            outcome.RefundedAt,
	})
}

// updatePending only touches requests that are still pending.
func (r *repository) updatePending(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).
		Model(&models.RefundRequest{}).
		Where("id = ? AND status = ?", id, enums.RefundRequestStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
