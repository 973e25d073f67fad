package ledger

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	return svc
}

func TestService_RecordEventSignsAmounts(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	sellerID := uuid.New()
	orderID := uuid.New()
	paymentID := uuid.New()

	credit, err := svc.RecordEvent(ctx, RecordLedgerEventInput{
		SellerID:    sellerID,
		OrderID:     orderID,
		PaymentID:   &paymentID,
		Type:        enums.LedgerEventTypeSellerCredit,
		AmountCents: 9500,
		Metadata:    json.RawMessage(`{"source":"cart"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9500), credit.AmountCents)

	itemID := uuid.New()
	debit, err := svc.RecordEvent(ctx, RecordLedgerEventInput{
		SellerID:    sellerID,
		OrderID:     orderID,
		OrderItemID: &itemID,
		Type:        enums.LedgerEventTypeRefundDebit,
		AmountCents: 2375,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(-2375), debit.AmountCents)

	total, err := svc.SellerTotal(ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, int64(7125), total)

	history, err := svc.History(ctx, sellerID, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)

	all, err := svc.History(ctx, sellerID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestService_SellerTotalEmpty(t *testing.T) {
	svc := newTestService(t)
	total, err := svc.SellerTotal(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestService_RecordEventValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	base := RecordLedgerEventInput{
		SellerID:    uuid.New(),
		OrderID:     uuid.New(),
		Type:        enums.LedgerEventTypeSellerCredit,
		AmountCents: 100,
	}

	cases := map[string]func(in *RecordLedgerEventInput){
		"missing seller":  func(in *RecordLedgerEventInput) { in.SellerID = uuid.Nil },
		"missing order":   func(in *RecordLedgerEventInput) { in.OrderID = uuid.Nil },
		"negative amount": func(in *RecordLedgerEventInput) { in.AmountCents = -1 },
		"unknown type":    func(in *RecordLedgerEventInput) { in.Type = "payout" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, err := svc.RecordEvent(ctx, in)
			assert.Error(t, err)
		})
	}
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)
}
