package errors

import (
	"fmt"
	"strings"
)

// Reason narrows a Code to a specific domain failure so callers can branch on it.
type Reason string

const (
	ReasonMissingPayoutAccount Reason = "missing_payout_account"
	ReasonAlreadyProcessed     Reason = "already_processed"
	ReasonInvalidSignature     Reason = "invalid_signature"
	ReasonProviderFailure      Reason = "provider_failure"
	ReasonNegativeAmount       Reason = "negative_amount"
	ReasonInvariantViolation   Reason = "invariant_violation"
)

// MissingPayoutAccount reports the sellers that cannot receive a split payment yet.
func MissingPayoutAccount(sellerIDs []string) *Error {
	return New(CodeStateConflict, fmt.Sprintf("sellers without payout account: %s", strings.Join(sellerIDs, ", "))).
		WithReason(ReasonMissingPayoutAccount).
		WithDetails(map[string]any{"seller_ids": sellerIDs})
}

func AlreadyProcessed(resource string) *Error {
	return New(CodeStateConflict, fmt.Sprintf("%s already processed", resource)).
		WithReason(ReasonAlreadyProcessed)
}

func InvalidSignature(err error) *Error {
	return Wrap(CodeValidation, err, "invalid webhook signature").
		WithReason(ReasonInvalidSignature)
}

// ProviderFailure keeps the payment provider's message visible to the caller.
func ProviderFailure(err error, message string) *Error {
	if strings.TrimSpace(message) == "" {
		message = "payment provider request failed"
	}
	return Wrap(CodeDependency, err, message).
		WithReason(ReasonProviderFailure)
}

// HasReason reports whether err carries the given domain reason.
func HasReason(err error, reason Reason) bool {
	typed := As(err)
	return typed != nil && typed.Reason() == reason
}

// NegativeAmount flags a price or split that would move money the wrong way.
func NegativeAmount(err error, what string) *Error {
	return Wrap(CodeValidation, err, "invalid "+what).
		WithReason(ReasonNegativeAmount)
}
