package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// User is a marketplace account. Sellers carry their connected payout account
// and the running balance of settled funds.
type User struct {
	ID                   uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	Name                 string         `gorm:"column:name;not null"`
	Email                string         `gorm:"column:email;type:text;not null;uniqueIndex"`
	Role                 enums.UserRole `gorm:"column:role;type:user_role;not null;default:'buyer'"`
	StripeAccountID      *string        `gorm:"column:stripe_account_id"`
	StripeChargesEnabled bool           `gorm:"column:stripe_charges_enabled;not null;default:false"`
	StripePayoutsEnabled bool           `gorm:"column:stripe_payouts_enabled;not null;default:false"`
	BalanceCents         int64          `gorm:"column:balance_cents;not null;default:0"`
	CreatedAt            time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// CanReceivePayouts reports whether split payments may target this seller.
func (u User) CanReceivePayouts() bool {
	return u.StripeAccountID != nil && *u.StripeAccountID != "" && u.StripeChargesEnabled
}
