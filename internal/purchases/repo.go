package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

// Repository persists purchase requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.PurchaseRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, unitPriceCents int64, at time.Time) (bool, error)
	PaymentExists(ctx context.Context, purchaseID uuid.UUID) (bool, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ListByDealer(ctx context.Context, dealerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error)
	ListByFarmer(ctx context.Context, farmerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchases repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	var purchase models.PurchaseRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if dbpkg.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var purchase models.PurchaseRequest
	if err := query.First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

// MarkConfirmed flips is_confirmed only if it is still false and snapshots the
// unit price. It returns false when another confirmation already won.
func (r *repository) MarkConfirmed(ctx context.Context, id uuid.UUID, unitPriceCents int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseRequest{}).
		Where("id = ? AND is_confirmed = ?", id, false).
		Updates(map[string]any{
			"is_confirmed":                     true,
			"confirmed_at":                     at,
			"unit_price_cents_at_confirmation": unitPriceCents,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) PaymentExists(ctx context.Context, purchaseID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("purchase_id = ?", purchaseID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PurchaseRequest{}).Error
}

func (r *repository) ListByDealer(ctx context.Context, dealerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error) {
	return r.list(ctx, "dealer_id", dealerID, cursor, limit)
}

func (r *repository) ListByFarmer(ctx context.Context, farmerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error) {
	return r.list(ctx, "farmer_id", farmerID, cursor, limit)
}

func (r *repository) list(ctx context.Context, column string, id uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PurchaseRequest{}).
		Where(column+" = ?", id)
	query = pagination.Apply(query, "requested_at", cursor, limit)

	var rows []models.PurchaseRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
