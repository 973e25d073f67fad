package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// RefundRequest is a buyer's claim against a single order item. Only one
// pending request may exist per item.
type RefundRequest struct {
	ID                   uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID            uuid.UUID                 `gorm:"column:payment_id;type:uuid;not null;index"`
	OrderID              uuid.UUID                 `gorm:"column:order_id;type:uuid;not null"`
	OrderItemID          uuid.UUID                 `gorm:"column:order_item_id;type:uuid;not null;uniqueIndex:ux_refund_requests_pending_item,where:status = 'pending'"`
	BuyerID              uuid.UUID                 `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID             uuid.UUID                 `gorm:"column:seller_id;type:uuid;not null"`
	Reason               string                    `gorm:"column:reason;not null"`
	EvidenceURL          *string                   `gorm:"column:evidence_url"`
	Status               enums.RefundRequestStatus `gorm:"column:status;type:refund_request_status;not null;default:'pending'"`
	RefundAmountCents    int64                     `gorm:"column:refund_amount_cents;not null;default:0"`
	PlatformFeeCents     int64                     `gorm:"column:platform_fee_cents;not null;default:0"`
	SellerDeductionCents int64                     `gorm:"column:seller_deduction_cents;not null;default:0"`
	StripeRefundID       *string                   `gorm:"column:stripe_refund_id"`
	ReviewerID           *uuid.UUID                `gorm:"column:reviewer_id;type:uuid"`
	ReviewNote           *string                   `gorm:"column:review_note"`
	RefundedAt           *time.Time                `gorm:"column:refunded_at"`
	CreatedAt            time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *RefundRequest) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
