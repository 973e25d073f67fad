package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
)

// Repository persists ledger events. Rows are append-only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LedgerEvent) error
	ListBySellerID(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEvent, error)
	SumBySellerID(ctx context.Context, sellerID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) bySeller(ctx context.Context, sellerID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.LedgerEvent{}).Where("seller_id = ?", sellerID)
}

func (r *repository) Create(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListBySellerID returns the newest events first. A non-positive limit returns all rows.
func (r *repository) ListBySellerID(ctx context.Context, sellerID uuid.UUID, limit int) ([]models.LedgerEvent, error) {
	q := r.bySeller(ctx, sellerID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var events []models.LedgerEvent
	if err := q.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) SumBySellerID(ctx context.Context, sellerID uuid.UUID) (int64, error) {
	var total int64
	if err := r.bySeller(ctx, sellerID).Select("COALESCE(SUM(amount_cents), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
