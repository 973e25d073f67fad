package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Payment is the settled authorization for one seller group of an order.
// At most one row exists per (order_id, seller_id).
type Payment struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payments_order_seller"`
	SellerID              uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_payments_order_seller"`
	BuyerID               uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	StripePaymentIntentID string              `gorm:"column:stripe_payment_intent_id;not null"`
	StripeAccountID       string              `gorm:"column:stripe_account_id;not null"`
	StripeSessionID       string              `gorm:"column:stripe_session_id;not null;default:''"`
	AmountCents           int64               `gorm:"column:amount_cents;not null"`
	SellerAmountCents     int64               `gorm:"column:seller_amount_cents;not null"`
	AdminAmountCents      int64               `gorm:"column:admin_amount_cents;not null"`
	RefundedCents         int64               `gorm:"column:refunded_cents;not null;default:0"`
	Currency              string              `gorm:"column:currency;not null;default:'usd'"`
	Status                enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'succeeded'"`
	CaptureStatus         enums.CaptureStatus `gorm:"column:capture_status;type:capture_status;not null;default:'pending';index:idx_payments_capture_due,priority:1"`
	CapturedAt            *time.Time          `gorm:"column:captured_at"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime;index:idx_payments_capture_due,priority:2"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
