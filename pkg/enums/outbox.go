package enums

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregatePayment       OutboxAggregateType = "payment"
	AggregateRefundRequest OutboxAggregateType = "refund_request"
	AggregateSellerAccount OutboxAggregateType = "seller_account"
)

var outboxAggregateTypes = newClosedSet("aggregate type",
	AggregateOrder,
	AggregatePayment,
	AggregateRefundRequest,
	AggregateSellerAccount,
)

func (o OutboxAggregateType) IsValid() bool { return outboxAggregateTypes.has(o) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return outboxAggregateTypes.parse(value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentSettled       OutboxEventType = "payment_settled"
	EventPaymentCaptured      OutboxEventType = "payment_captured"
	EventOrderCompleted       OutboxEventType = "order_completed"
	EventRefundRequested      OutboxEventType = "refund_requested"
	EventRefundProcessed      OutboxEventType = "refund_processed"
	EventRefundRejected       OutboxEventType = "refund_rejected"
	EventSellerAccountUpdated OutboxEventType = "seller_account_updated"
)

var outboxEventTypes = newClosedSet("event type",
	EventPaymentSettled,
	EventPaymentCaptured,
	EventOrderCompleted,
	EventRefundRequested,
	EventRefundProcessed,
	EventRefundRejected,
	EventSellerAccountUpdated,
)

func (o OutboxEventType) IsValid() bool { return outboxEventTypes.has(o) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return outboxEventTypes.parse(value)
}
