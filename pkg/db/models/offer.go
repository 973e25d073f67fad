package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Offer is a negotiated single-unit price between a buyer and a seller.
type Offer struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID    uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	SellerID   uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	ProductID  uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index"`
	PriceCents int64             `gorm:"column:price_cents;not null"`
	Status     enums.OfferStatus `gorm:"column:status;type:offer_status;not null;default:'pending'"`
	Product    *Product          `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Offer) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
