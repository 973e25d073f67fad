package enums

// OrderSource records whether an order came from a cart or an accepted offer.
type OrderSource string

const (
	OrderSourceCart  OrderSource = "cart"
	OrderSourceOffer OrderSource = "offer"
)

var orderSources = newClosedSet("order source",
	OrderSourceCart,
	OrderSourceOffer,
)

func (o OrderSource) String() string { return string(o) }

func (o OrderSource) IsValid() bool { return orderSources.has(o) }

func ParseOrderSource(value string) (OrderSource, error) {
	return orderSources.parse(value)
}
