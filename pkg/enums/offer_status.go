package enums

// OfferStatus tracks a negotiated price offer between buyer and seller.
type OfferStatus string

const (
	OfferStatusPending  OfferStatus = "pending"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
)

var offerStatuses = newClosedSet("offer status",
	OfferStatusPending,
	OfferStatusAccepted,
	OfferStatusRejected,
)

func (o OfferStatus) String() string { return string(o) }

func (o OfferStatus) IsValid() bool { return offerStatuses.has(o) }

func ParseOfferStatus(value string) (OfferStatus, error) {
	return offerStatuses.parse(value)
}
