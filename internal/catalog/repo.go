package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// ErrInsufficientInventory is returned when a decrement would take a product
// below zero on-hand units.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// Repository reads listings, carts and offers and applies the inventory side
// effects of a settled purchase.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindCartByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error)
	FindOfferForUpdate(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	DecrementInventory(ctx context.Context, productID uuid.UUID, quantity int) error
	DeletePendingOffers(ctx context.Context, buyerID, productID uuid.UUID) (int64, error)
	DeleteOffer(ctx context.Context, id uuid.UUID) error
	RemoveCartProducts(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindCartByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.CartRecord, error) {
	var cart models.CartRecord
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Items.Product").
		Where("buyer_id = ?", buyerID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindOfferForUpdate locks the offer row so concurrent checkouts of one offer
// run one after another.
func (r *repository) FindOfferForUpdate(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	var offer models.Offer
	if err := db.ForUpdate(r.db.WithContext(ctx)).Preload("Product").Where("id = ?", id).First(&offer).Error; err != nil {
		return nil, err
	}
	return &offer, nil
}

// DecrementInventory removes sold units and bumps the sell count in a single
// guarded update. A listing that reaches zero is marked sold out.
func (r *repository) DecrementInventory(ctx context.Context, productID uuid.UUID, quantity int) error {
	if quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", productID, quantity).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", quantity),
			"sell_count": gorm.Expr("sell_count + ?", quantity),
			"status": gorm.Expr("CASE WHEN quantity - ? <= 0 THEN ? ELSE status END",
				quantity, string(enums.ProductStatusSoldOut)),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientInventory
	}
	return nil
}

// DeletePendingOffers drops offers the buyer no longer needs once the product
// was bought another way.
func (r *repository) DeletePendingOffers(ctx context.Context, buyerID, productID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("buyer_id = ? AND product_id = ? AND status = ?", buyerID, productID, enums.OfferStatusPending).
		Delete(&models.Offer{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteOffer(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Offer{}).Error
}

// RemoveCartProducts deletes the purchased products from the buyer's cart and
// drops the cart once nothing is left in it.
func (r *repository) RemoveCartProducts(ctx context.Context, buyerID uuid.UUID, productIDs []uuid.UUID) error {
	var cart models.CartRecord
	err := r.db.WithContext(ctx).Where("buyer_id = ?", buyerID).First(&cart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if len(productIDs) > 0 {
		if err := r.db.WithContext(ctx).
			Where("cart_id = ? AND product_id IN ?", cart.ID, productIDs).
			Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
	}

	var remaining int64
	if err := r.db.WithContext(ctx).Model(&models.CartItem{}).Where("cart_id = ?", cart.ID).Count(&remaining).Error; err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id = ?", cart.ID).Delete(&models.CartRecord{}).Error
}
