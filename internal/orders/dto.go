package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/money"
)

// CartLine is one product the buyer wants to purchase with the chosen variant.
type CartLine struct {
	ProductID uuid.UUID
	Quantity  int
	Color     string
	Size      string
}

// SellerGroup is the share of an order paid to one connected account.
// Split covers the whole group; each item also carries its own split.
type SellerGroup struct {
	SellerID        uuid.UUID
	StripeAccountID string
	Items           []models.OrderItem
	Split           money.Split
}

// Aggregate is a persisted order plus its seller groups ordered by seller id.
type Aggregate struct {
	Order  *models.Order
	Groups []SellerGroup
}

// Group returns the seller group for sellerID, if present.
func (a *Aggregate) Group(sellerID uuid.UUID) (*SellerGroup, bool) {
	if a == nil {
		return nil, false
	}
	for i := range a.Groups {
		if a.Groups[i].SellerID == sellerID {
			return &a.Groups[i], true
		}
	}
	return nil, false
}
