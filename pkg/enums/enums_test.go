package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRefundRequestStatus(t *testing.T) {
	status, err := ParseRefundRequestStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, RefundRequestStatusApproved, status)

	_, err = ParseRefundRequestStatus("APPROVED")
	assert.Error(t, err)
}

func TestSettlementEnumsAreClosed(t *testing.T) {
	assert.True(t, CaptureStatusPending.IsValid())
	assert.False(t, CaptureStatus("voided").IsValid())
	assert.True(t, PaymentStatusRefunded.IsValid())
	assert.False(t, PaymentStatus("partially_refunded").IsValid())
	assert.True(t, RefundStatusNone.IsValid())
	assert.False(t, OrderStatus("canceled").IsValid())
	assert.True(t, OrderSourceOffer.IsValid())
	assert.True(t, LedgerEventTypeRefundDebit.IsValid())
}

func TestParseUserRole(t *testing.T) {
	role, err := ParseUserRole("admin")
	require.NoError(t, err)
	assert.Equal(t, UserRoleAdmin, role)
	assert.Equal(t, "admin", role.String())

	_, err = ParseUserRole("root")
	assert.EqualError(t, err, `invalid user role "root"`)
}

func TestOutboxEventTypes(t *testing.T) {
	event, err := ParseOutboxEventType("refund_processed")
	require.NoError(t, err)
	assert.Equal(t, EventRefundProcessed, event)
	assert.False(t, OutboxEventType("order_created").IsValid())
	assert.True(t, AggregatePayment.IsValid())
}
