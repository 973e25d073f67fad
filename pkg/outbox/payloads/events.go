package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// PaymentSettledEvent is emitted when a seller group's checkout completes.
type PaymentSettledEvent struct {
	PaymentID         uuid.UUID         `json:"payment_id"`
	OrderID           uuid.UUID         `json:"order_id"`
	BuyerID           uuid.UUID         `json:"buyer_id"`
	SellerID          uuid.UUID         `json:"seller_id"`
	Source            enums.OrderSource `json:"source"`
	AmountCents       int64             `json:"amount_cents"`
	SellerAmountCents int64             `json:"seller_amount_cents"`
	AdminAmountCents  int64             `json:"admin_amount_cents"`
}

// OrderCompletedEvent is emitted once every seller group of an order has paid.
type OrderCompletedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	OrderUID   string    `json:"order_uid"`
	BuyerID    uuid.UUID `json:"buyer_id"`
	PriceCents int64     `json:"price_cents"`
}

// PaymentCapturedEvent is emitted when held funds are captured.
type PaymentCapturedEvent struct {
	PaymentID  uuid.UUID `json:"payment_id"`
	OrderID    uuid.UUID `json:"order_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	CapturedAt time.Time `json:"captured_at"`
}

// RefundRequestedEvent notifies reviewers of a new buyer claim.
type RefundRequestedEvent struct {
	RefundRequestID uuid.UUID `json:"refund_request_id"`
	OrderItemID     uuid.UUID `json:"order_item_id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	SellerID        uuid.UUID `json:"seller_id"`
	Reason          string    `json:"reason"`
}

// RefundProcessedEvent carries the money movement of an approved refund.
type RefundProcessedEvent struct {
	RefundRequestID      uuid.UUID `json:"refund_request_id"`
	OrderItemID          uuid.UUID `json:"order_item_id"`
	PaymentID            uuid.UUID `json:"payment_id"`
	BuyerID              uuid.UUID `json:"buyer_id"`
	SellerID             uuid.UUID `json:"seller_id"`
	StripeRefundID       string    `json:"stripe_refund_id"`
	RefundAmountCents    int64     `json:"refund_amount_cents"`
	SellerDeductionCents int64     `json:"seller_deduction_cents"`
	PaymentFullyRefunded bool      `json:"payment_fully_refunded"`
}

// RefundRejectedEvent notifies the buyer that a claim was declined.
type RefundRejectedEvent struct {
	RefundRequestID uuid.UUID `json:"refund_request_id"`
	OrderItemID     uuid.UUID `json:"order_item_id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	Note            string    `json:"note,omitempty"`
}

// SellerAccountUpdatedEvent mirrors connected account capability changes.
type SellerAccountUpdatedEvent struct {
	SellerID        uuid.UUID `json:"seller_id"`
	StripeAccountID string    `json:"stripe_account_id"`
	ChargesEnabled  bool      `json:"charges_enabled"`
	PayoutsEnabled  bool      `json:"payouts_enabled"`
}
