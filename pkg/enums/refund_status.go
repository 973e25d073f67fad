package enums

// RefundStatus tracks the refund lifecycle of a single order item.
type RefundStatus string

const (
	RefundStatusNone     RefundStatus = "none"
	RefundStatusPending  RefundStatus = "pending"
	RefundStatusRefunded RefundStatus = "refunded"
)

var refundStatuses = newClosedSet("refund status",
	RefundStatusNone,
	RefundStatusPending,
	RefundStatusRefunded,
)

func (r RefundStatus) String() string { return string(r) }

func (r RefundStatus) IsValid() bool { return refundStatuses.has(r) }

func ParseRefundStatus(value string) (RefundStatus, error) {
	return refundStatuses.parse(value)
}
