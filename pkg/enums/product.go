package enums

// ProductStatus controls whether a listing can be ordered.
type ProductStatus string

const (
	ProductStatusActive  ProductStatus = "active"
	ProductStatusSoldOut ProductStatus = "sold_out"
)

var productStatuses = newClosedSet("product status",
	ProductStatusActive,
	ProductStatusSoldOut,
)

func (p ProductStatus) String() string { return string(p) }

func (p ProductStatus) IsValid() bool { return productStatuses.has(p) }

func ParseProductStatus(value string) (ProductStatus, error) {
	return productStatuses.parse(value)
}
