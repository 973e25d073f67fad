package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkoutsvc "github.com/angelmondragon/vowmarket-backend/internal/checkout"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vowmarket-backend/pkg/errors"
)

type stubCheckoutService struct {
	result  *checkoutsvc.Result
	err     error
	buyerID uuid.UUID
	offerID uuid.UUID
}

func (s *stubCheckoutService) CheckoutCart(ctx context.Context, buyerID uuid.UUID) (*checkoutsvc.Result, error) {
	s.buyerID = buyerID
	return s.result, s.err
}

func (s *stubCheckoutService) CheckoutOffer(ctx context.Context, buyerID, offerID uuid.UUID) (*checkoutsvc.Result, error) {
	s.buyerID = buyerID
	s.offerID = offerID
	return s.result, s.err
}

func TestCheckoutCartReturnsSessions(t *testing.T) {
	t.Parallel()

	buyerID := uuid.New()
	sellerID := uuid.New()
	svc := &stubCheckoutService{result: &checkoutsvc.Result{
		OrderID:  uuid.New(),
		OrderUID: "ORD-1",
		Total:    10000,
		Sessions: []checkoutsvc.SessionResult{{SellerID: sellerID, AmountCents: 10000, SessionID: "cs_1", URL: "https://checkout.example/cs_1"}},
	}}

	rec := serve(CheckoutCart(svc, testLogger()), authedRequest(http.MethodPost, "/api/v1/checkout/cart", "", buyerID, enums.UserRoleBuyer, nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, buyerID, svc.buyerID)

	var body checkoutsvc.Result
	decodeData(t, rec, &body)
	require.Len(t, body.Sessions, 1)
	assert.Equal(t, "cs_1", body.Sessions[0].SessionID)
	assert.Equal(t, int64(10000), body.Total)
}

func TestCheckoutCartMissingPayoutAccount(t *testing.T) {
	t.Parallel()

	sellerID := uuid.NewString()
	svc := &stubCheckoutService{err: pkgerrors.MissingPayoutAccount([]string{sellerID})}

	rec := serve(CheckoutCart(svc, testLogger()), authedRequest(http.MethodPost, "/api/v1/checkout/cart", "", uuid.New(), enums.UserRoleBuyer, nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	apiErr := decodeAPIError(t, rec)
	assert.Equal(t, string(pkgerrors.ReasonMissingPayoutAccount), apiErr.Reason)
	assert.Contains(t, apiErr.Message, sellerID)
}

func TestCheckoutOfferParsesOfferID(t *testing.T) {
	t.Parallel()

	offerID := uuid.New()
	svc := &stubCheckoutService{result: &checkoutsvc.Result{OrderID: uuid.New()}}

	req := authedRequest(http.MethodPost, "/api/v1/checkout/offers/"+offerID.String(), "", uuid.New(), enums.UserRoleBuyer, map[string]string{"offerId": offerID.String()})
	rec := serve(CheckoutOffer(svc, testLogger()), req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, offerID, svc.offerID)
}

func TestCheckoutOfferRejectsBadOfferID(t *testing.T) {
	t.Parallel()

	svc := &stubCheckoutService{}
	req := authedRequest(http.MethodPost, "/api/v1/checkout/offers/nope", "", uuid.New(), enums.UserRoleBuyer, map[string]string{"offerId": "nope"})
	rec := serve(CheckoutOffer(svc, testLogger()), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, uuid.Nil, svc.offerID)
}
