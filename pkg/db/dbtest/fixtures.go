package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// User inserts a user with the given role.
func User(t *testing.T, conn *gorm.DB, role enums.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		Name:  string(role) + " user",
		Email: uuid.NewString() + "@vowmarket.test",
		Role:  role,
	}
	if err := conn.Create(user).Error; err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	return user
}

// Seller inserts a seller whose connected account can take charges.
func Seller(t *testing.T, conn *gorm.DB) *models.User {
	t.Helper()
	seller := User(t, conn, enums.UserRoleSeller)
	account := "acct_" + seller.ID.String()[:8]
	seller.StripeAccountID = &account
	seller.StripeChargesEnabled = true
	seller.StripePayoutsEnabled = true
	if err := conn.Save(seller).Error; err != nil {
		t.Fatalf("connect seller: %v", err)
	}
	return seller
}

// Product inserts an active listing owned by seller.
func Product(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, priceCents int64, quantity int) *models.Product {
	t.Helper()
	product := &models.Product{
		SellerID:    sellerID,
		Name:        "Lace gown",
		Description: "A-line, ivory",
		Color:       "ivory",
		Size:        "8",
		Material:    "lace",
		Condition:   "like new",
		ImageURL:    "https://img.vowmarket.test/gown.jpg",
		PriceCents:  priceCents,
		Quantity:    quantity,
		Status:      enums.ProductStatusActive,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// CartItem adds a product to the buyer's cart, creating the cart on first use.
func CartItem(t *testing.T, conn *gorm.DB, buyerID uuid.UUID, product *models.Product, quantity int) *models.CartItem {
	t.Helper()
	var cart models.CartRecord
	if err := conn.Where(models.CartRecord{BuyerID: buyerID}).FirstOrCreate(&cart).Error; err != nil {
		t.Fatalf("load cart: %v", err)
	}
	item := &models.CartItem{
		CartID:    cart.ID,
		ProductID: product.ID,
		SellerID:  product.SellerID,
		Quantity:  quantity,
		Color:     product.Color,
		Size:      product.Size,
	}
	if err := conn.Create(item).Error; err != nil {
		t.Fatalf("create cart item: %v", err)
	}
	return item
}

// Offer inserts an offer in the given status.
func Offer(t *testing.T, conn *gorm.DB, buyerID uuid.UUID, product *models.Product, priceCents int64, status enums.OfferStatus) *models.Offer {
	t.Helper()
	offer := &models.Offer{
		BuyerID:    buyerID,
		SellerID:   product.SellerID,
		ProductID:  product.ID,
		PriceCents: priceCents,
		Status:     status,
	}
	if err := conn.Create(offer).Error; err != nil {
		t.Fatalf("create offer: %v", err)
	}
	return offer
}
