package enums

// RefundRequestStatus is the reviewer decision state of a refund request.
type RefundRequestStatus string

const (
	RefundRequestStatusPending  RefundRequestStatus = "pending"
	RefundRequestStatusApproved RefundRequestStatus = "approved"
	RefundRequestStatusRejected RefundRequestStatus = "rejected"
)

var refundRequestStatuses = newClosedSet("refund request status",
	RefundRequestStatusPending,
	RefundRequestStatusApproved,
	RefundRequestStatusRejected,
)

func (r RefundRequestStatus) String() string { return string(r) }

func (r RefundRequestStatus) IsValid() bool { return refundRequestStatuses.has(r) }

func ParseRefundRequestStatus(value string) (RefundRequestStatus, error) {
	return refundRequestStatuses.parse(value)
}
