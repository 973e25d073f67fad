package controllers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vowmarket-backend/internal/accounts"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

type stubAccountService struct {
	sellerID uuid.UUID
}

func (s *stubAccountService) Onboard(ctx context.Context, sellerID uuid.UUID) (*accounts.OnboardResult, error) {
	s.sellerID = sellerID
	return &accounts.OnboardResult{StripeAccountID: "acct_1", URL: "https://connect.example/onboard"}, nil
}

func (s *stubAccountService) RefreshStatus(ctx context.Context, sellerID uuid.UUID) (*accounts.StatusResult, error) {
	s.sellerID = sellerID
	return &accounts.StatusResult{StripeAccountID: "acct_1", ChargesEnabled: true, PayoutsEnabled: true}, nil
}

func (s *stubAccountService) Balance(ctx context.Context, sellerID uuid.UUID) (*accounts.BalanceResult, error) {
	s.sellerID = sellerID
	return &accounts.BalanceResult{SellerID: sellerID, BalanceCents: 9500, Currency: "usd"}, nil
}

type stubLedger struct {
	limit  int
	events []models.LedgerEvent
}

func (s *stubLedger) History(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEvent, error) {
	s.limit = limit
	return s.events, nil
}

func TestSellerConnectUsesAuthenticatedSeller(t *testing.T) {
	t.Parallel()

	sellerID := uuid.New()
	svc := &stubAccountService{}
	rec := serve(SellerConnect(svc, testLogger()), authedRequest(http.MethodPost, "/api/v1/seller/connect", "", sellerID, enums.UserRoleSeller, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, sellerID, svc.sellerID)

	var body accounts.OnboardResult
	decodeData(t, rec, &body)
	assert.Equal(t, "https://connect.example/onboard", body.URL)
}

func TestSellerConnectRefresh(t *testing.T) {
	t.Parallel()

	svc := &stubAccountService{}
	rec := serve(SellerConnectRefresh(svc, testLogger()), authedRequest(http.MethodPost, "/api/v1/seller/connect/refresh", "", uuid.New(), enums.UserRoleSeller, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body accounts.StatusResult
	decodeData(t, rec, &body)
	assert.True(t, body.PayoutsEnabled)
}

func TestSellerBalance(t *testing.T) {
	t.Parallel()

	svc := &stubAccountService{}
	rec := serve(SellerBalance(svc, testLogger()), authedRequest(http.MethodGet, "/api/v1/seller/balance", "", uuid.New(), enums.UserRoleSeller, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body accounts.BalanceResult
	decodeData(t, rec, &body)
	assert.Equal(t, int64(9500), body.BalanceCents)
}

func TestSellerLedgerLimit(t *testing.T) {
	t.Parallel()

	ledger := &stubLedger{events: []models.LedgerEvent{{ID: uuid.New(), Type: enums.LedgerEventTypeSellerCredit, AmountCents: 9500}}}
	rec := serve(SellerLedger(ledger, testLogger()), authedRequest(http.MethodGet, "/api/v1/seller/ledger?limit=10", "", uuid.New(), enums.UserRoleSeller, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, ledger.limit)

	var body []ledgerEventResponse
	decodeData(t, rec, &body)
	require.Len(t, body, 1)
	assert.Equal(t, "seller_credit", body[0].Type)

	rec = serve(SellerLedger(ledger, testLogger()), authedRequest(http.MethodGet, "/api/v1/seller/ledger?limit=9999", "", uuid.New(), enums.UserRoleSeller, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellerRoutesRequireActor(t *testing.T) {
	t.Parallel()

	req, _ := http.NewRequest(http.MethodGet, "/api/v1/seller/balance", nil)
	rec := serve(SellerBalance(&stubAccountService{}, testLogger()), req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
