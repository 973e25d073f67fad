package enums

// OrderStatus tracks whether every seller group of an order has settled.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
)

var orderStatuses = newClosedSet("order status",
	OrderStatusPending,
	OrderStatusCompleted,
)

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return orderStatuses.has(o) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse(value)
}
