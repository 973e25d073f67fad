package accounts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
)

// Repository persists marketplace users and their payout state.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error)
	FindByStripeAccountID(ctx context.Context, accountID string) (*models.User, error)
	SetStripeAccount(ctx context.Context, userID uuid.UUID, accountID string) error
	UpdateCapabilities(ctx context.Context, userID uuid.UUID, chargesEnabled, payoutsEnabled bool) error
	Credit(ctx context.Context, sellerID uuid.UUID, cents int64) error
	Debit(ctx context.Context, sellerID uuid.UUID, cents int64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an accounts repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) FindByStripeAccountID(ctx context.Context, accountID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("stripe_account_id = ?", accountID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) SetStripeAccount(ctx context.Context, userID uuid.UUID, accountID string) error {
	return r.updateOne(ctx, userID, map[string]any{"stripe_account_id": accountID})
}

func (r *repository) UpdateCapabilities(ctx context.Context, userID uuid.UUID, chargesEnabled, payoutsEnabled bool) error {
	return r.updateOne(ctx, userID, map[string]any{
		"stripe_charges_enabled": chargesEnabled,
		"stripe_payouts_enabled": payoutsEnabled,
	})
}

// Credit adds cents to the seller balance in place so concurrent settlements
// never lose an update.
func (r *repository) Credit(ctx context.Context, sellerID uuid.UUID, cents int64) error {
	return r.adjustBalance(ctx, sellerID, cents)
}

// Debit subtracts cents from the seller balance in place.
func (r *repository) Debit(ctx context.Context, sellerID uuid.UUID, cents int64) error {
	return r.adjustBalance(ctx, sellerID, -cents)
}

func (r *repository) adjustBalance(ctx context.Context, sellerID uuid.UUID, delta int64) error {
	return r.updateOne(ctx, sellerID, map[string]any{
		"balance_cents": gorm.Expr("balance_cents + ?", delta),
	})
}

func (r *repository) updateOne(ctx context.Context, userID uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
