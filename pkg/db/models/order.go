package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Order is a buyer purchase spanning one or more sellers.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UID        string            `gorm:"column:uid;not null;uniqueIndex"`
	BuyerID    uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null;index"`
	Source     enums.OrderSource `gorm:"column:source;type:order_source;not null"`
	OfferID    *uuid.UUID        `gorm:"column:offer_id;type:uuid"`
	PriceCents int64             `gorm:"column:price_cents;not null"`
	Currency   string            `gorm:"column:currency;not null;default:'usd'"`
	Status     enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'pending'"`
	Items      []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
