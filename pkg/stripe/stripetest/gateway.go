// Package stripetest provides an in-memory payment gateway for tests.
package stripetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v83"
)

// Gateway records every provider call and answers from in-memory state.
// Set the *Err fields to force a provider failure.
type Gateway struct {
	mu sync.Mutex

	Sessions       []*stripe.CheckoutSessionParams
	Captures       []string
	CaptureKeys    []string
	Refunds        []*stripe.RefundParams
	Accounts       []*stripe.AccountParams
	AccountLinks   []*stripe.AccountLinkParams
	IntentStatuses map[string]stripe.PaymentIntentStatus
	AccountStates  map[string]*stripe.Account
	Balances       map[string]*stripe.Balance

	SessionErr      map[string]error
	GetIntentErr    error
	CaptureErr      error
	RefundErr       error
	AccountErr      error
	AccountLinkErr  error
	BalanceErr      error
	sessionSequence int
	refundSequence  int
}

// New returns an empty gateway.
func New() *Gateway {
	return &Gateway{
		IntentStatuses: map[string]stripe.PaymentIntentStatus{},
		AccountStates:  map[string]*stripe.Account{},
		Balances:       map[string]*stripe.Balance{},
		SessionErr:     map[string]error{},
	}
}

// ProviderError builds an error shaped like the ones stripe-go returns.
func ProviderError(msg string) error {
	return &stripe.Error{Msg: msg, Type: stripe.ErrorTypeInvalidRequest}
}

func (g *Gateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Sessions = append(g.Sessions, params)
	destination := ""
	if params.PaymentIntentData != nil && params.PaymentIntentData.TransferData != nil && params.PaymentIntentData.TransferData.Destination != nil {
		destination = *params.PaymentIntentData.TransferData.Destination
	}
	if err, ok := g.SessionErr[destination]; ok && err != nil {
		return nil, err
	}
	g.sessionSequence++
	id := fmt.Sprintf("cs_test_%d", g.sessionSequence)
	return &stripe.CheckoutSession{
		ID:  id,
		URL: "https://checkout.stripe.test/" + id,
	}, nil
}

func (g *Gateway) GetPaymentIntent(_ context.Context, id string) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.GetIntentErr != nil {
		return nil, g.GetIntentErr
	}
	status, ok := g.IntentStatuses[id]
	if !ok {
		status = stripe.PaymentIntentStatusRequiresCapture
	}
	return &stripe.PaymentIntent{ID: id, Status: status}, nil
}

func (g *Gateway) CapturePaymentIntent(_ context.Context, id string, params *stripe.PaymentIntentCaptureParams) (*stripe.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CaptureErr != nil {
		return nil, g.CaptureErr
	}
	g.Captures = append(g.Captures, id)
	if params != nil && params.IdempotencyKey != nil {
		g.CaptureKeys = append(g.CaptureKeys, *params.IdempotencyKey)
	}
	g.IntentStatuses[id] = stripe.PaymentIntentStatusSucceeded
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusSucceeded}, nil
}

func (g *Gateway) CreateRefund(_ context.Context, params *stripe.RefundParams) (*stripe.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return nil, g.RefundErr
	}
	g.Refunds = append(g.Refunds, params)
	g.refundSequence++
	refund := &stripe.Refund{
		ID:     fmt.Sprintf("re_test_%d", g.refundSequence),
		Status: stripe.RefundStatusSucceeded,
	}
	if params.Amount != nil {
		refund.Amount = *params.Amount
	}
	return refund, nil
}

func (g *Gateway) CreateAccount(_ context.Context, params *stripe.AccountParams) (*stripe.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AccountErr != nil {
		return nil, g.AccountErr
	}
	g.Accounts = append(g.Accounts, params)
	acct := &stripe.Account{ID: fmt.Sprintf("acct_test_%d", len(g.Accounts))}
	g.AccountStates[acct.ID] = acct
	return acct, nil
}

func (g *Gateway) GetAccount(_ context.Context, id string) (*stripe.Account, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AccountErr != nil {
		return nil, g.AccountErr
	}
	if acct, ok := g.AccountStates[id]; ok {
		return acct, nil
	}
	return nil, ProviderError("No such account: " + id)
}

func (g *Gateway) CreateAccountLink(_ context.Context, params *stripe.AccountLinkParams) (*stripe.AccountLink, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.AccountLinkErr != nil {
		return nil, g.AccountLinkErr
	}
	g.AccountLinks = append(g.AccountLinks, params)
	return &stripe.AccountLink{
		URL:       "https://connect.stripe.test/setup/" + stripe.StringValue(params.Account),
		ExpiresAt: time.Now().Add(5 * time.Minute).Unix(),
	}, nil
}

func (g *Gateway) GetConnectedBalance(_ context.Context, accountID string) (*stripe.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.BalanceErr != nil {
		return nil, g.BalanceErr
	}
	if bal, ok := g.Balances[accountID]; ok {
		return bal, nil
	}
	return &stripe.Balance{}, nil
}

// CaptureCount returns how many captures reached the provider.
func (g *Gateway) CaptureCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Captures)
}

// RefundCount returns how many refunds reached the provider.
func (g *Gateway) RefundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Refunds)
}
