package stripe

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v83"
)

// Idempotency keys are derived from stable local ids so a replayed step
// resolves to the provider's original result.

func CheckoutIdempotencyKey(orderID, sellerID uuid.UUID) string {
	return fmt.Sprintf("checkout:%s:%s", orderID, sellerID)
}

func CaptureIdempotencyKey(paymentID uuid.UUID) string {
	return fmt.Sprintf("capture:%s", paymentID)
}

func RefundIdempotencyKey(refundRequestID uuid.UUID) string {
	return fmt.Sprintf("refund:%s", refundRequestID)
}

func AccountIdempotencyKey(userID uuid.UUID) string {
	return fmt.Sprintf("account:%s", userID)
}

// ProviderMessage returns the human readable message Stripe attached to err.
func ProviderMessage(err error) string {
	if err == nil {
		return ""
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	return err.Error()
}
