package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Product is a seller listing with its on-hand inventory.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Name        string              `gorm:"column:name;not null"`
	Description string              `gorm:"column:description;not null;default:''"`
	Color       string              `gorm:"column:color;not null;default:''"`
	Size        string              `gorm:"column:size;not null;default:''"`
	Material    string              `gorm:"column:material;not null;default:''"`
	Condition   string              `gorm:"column:condition;not null;default:''"`
	ImageURL    string              `gorm:"column:image_url;not null;default:''"`
	PriceCents  int64               `gorm:"column:price_cents;not null"`
	Quantity    int                 `gorm:"column:quantity;not null;default:0"`
	SellCount   int                 `gorm:"column:sell_count;not null;default:0"`
	Status      enums.ProductStatus `gorm:"column:status;type:product_status;not null;default:'active'"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
