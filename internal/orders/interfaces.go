package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	HasOpenOfferOrder(ctx context.Context, offerID uuid.UUID, since time.Time) (bool, error)
	FindItem(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	FindItemForUpdate(ctx context.Context, id uuid.UUID) (*models.OrderItem, error)
	ListItemsBySeller(ctx context.Context, orderID, sellerID uuid.UUID) ([]models.OrderItem, error)
	DistinctSellerIDs(ctx context.Context, orderID uuid.UUID) ([]uuid.UUID, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
	UpdateItemRefundStatus(ctx context.Context, itemID uuid.UUID, status enums.RefundStatus) error
}
