package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// OrderItem snapshots a purchased product line and its commission split.
type OrderItem struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID          `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID         uuid.UUID          `gorm:"column:product_id;type:uuid;not null"`
	SellerID          uuid.UUID          `gorm:"column:seller_id;type:uuid;not null;index"`
	Quantity          int                `gorm:"column:quantity;not null"`
	ItemPriceCents    int64              `gorm:"column:item_price_cents;not null"`
	PriceCents        int64              `gorm:"column:price_cents;not null"`
	SellerAmountCents int64              `gorm:"column:seller_amount_cents;not null"`
	AdminAmountCents  int64              `gorm:"column:admin_amount_cents;not null"`
	RefundStatus      enums.RefundStatus `gorm:"column:refund_status;type:refund_status;not null;default:'none'"`
	ProductName       string             `gorm:"column:product_name;not null"`
	Description       string             `gorm:"column:description;not null;default:''"`
	Color             string             `gorm:"column:color;not null;default:''"`
	Size              string             `gorm:"column:size;not null;default:''"`
	Material          string             `gorm:"column:material;not null;default:''"`
	Condition         string             `gorm:"column:condition;not null;default:''"`
	ImageURL          string             `gorm:"column:image_url;not null;default:''"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
