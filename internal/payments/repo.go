package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/vowmarket-backend/pkg/db"
	"github.com/angelmondragon/vowmarket-backend/pkg/db/models"
	"github.com/angelmondragon/vowmarket-backend/pkg/enums"
)

// Repository persists seller payments. At most one row exists per
// (order_id, seller_id).
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderAndSeller(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Payment, error)
	FindByOrderAndSellerForUpdate(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Payment, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)
	ListDueForCapture(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error)
	MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error
	AddRefunded(ctx context.Context, id uuid.UUID, cents int64, fullyRefunded bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertIfAbsent inserts payment unless one already exists for its order and
// seller. It reports whether a row was written.
func (r *repository) InsertIfAbsent(ctx context.Context, payment *models.Payment) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "seller_id"}},
			DoNothing: true,
		}).
		Create(payment)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx), "id = ?", id)
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return r.first(db.ForUpdate(r.db.WithContext(ctx)), "id = ?", id)
}

func (r *repository) FindByOrderAndSeller(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Payment, error) {
	return r.first(r.db.WithContext(ctx), "order_id = ? AND seller_id = ?", orderID, sellerID)
}

func (r *repository) FindByOrderAndSellerForUpdate(ctx context.Context, orderID, sellerID uuid.UUID) (*models.Payment, error) {
	return r.first(db.ForUpdate(r.db.WithContext(ctx)), "order_id = ? AND seller_id = ?", orderID, sellerID)
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDueForCapture returns authorized payments older than cutoff, oldest first.
func (r *repository) ListDueForCapture(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	query := r.db.WithContext(ctx).
		Where("capture_status = ? AND status = ? AND created_at < ?",
			enums.CaptureStatusPending, enums.PaymentStatusSucceeded, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) MarkCaptured(ctx context.Context, id uuid.UUID, capturedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"capture_status": enums.CaptureStatusCaptured,
			"captured_at":    capturedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddRefunded accumulates refunded cents and flips the payment to refunded
// once every item of the seller group has been refunded.
func (r *repository) AddRefunded(ctx context.Context, id uuid.UUID, cents int64, fullyRefunded bool) error {
	updates := map[string]any{
		"refunded_cents": gorm.Expr("refunded_cents + ?", cents),
	}
	if fullyRefunded {
		updates["status"] = enums.PaymentStatusRefunded
	}
	res := r.db.WithContext(ctx).Model(&models.Payment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) first(query *gorm.DB, cond string, args ...any) (*models.Payment, error) {
	var payment models.Payment
	if err := query.Where(cond, args...).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}
