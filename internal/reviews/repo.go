package reviews

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

// Repository reads and writes the review columns of purchase requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindPurchaseForUpdate(ctx context.Context, purchaseID uuid.UUID) (*models.PurchaseRequest, error)
	FindPayment(ctx context.Context, purchaseID uuid.UUID) (*models.Payment, error)
	MarkReviewed(ctx context.Context, purchaseID uuid.UUID, rating int, text *string, at time.Time) (bool, error)
	CropStats(ctx context.Context, cropID uuid.UUID) (sum int64, count int64, err error)
	ListForCrop(ctx context.Context, cropID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a reviews repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPurchaseForUpdate(ctx context.Context, purchaseID uuid.UUID) (*models.PurchaseRequest, error) {
	query := r.db.WithContext(ctx).Where("id = ?", purchaseID)
	if dbpkg.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var purchase models.PurchaseRequest
	if err := query.First(&purchase).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindPayment(ctx context.Context, purchaseID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkReviewed stores the review only if none exists yet.
func (r *repository) MarkReviewed(ctx context.Context, purchaseID uuid.UUID, rating int, text *string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PurchaseRequest{}).
		Where("id = ? AND has_been_reviewed = ?", purchaseID, false).
		Updates(map[string]any{
			"rating":            rating,
			"review_text":       text,
			"review_date":       at,
			"has_been_reviewed": true,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CropStats(ctx context.Context, cropID uuid.UUID) (int64, int64, error) {
	var stats struct {
		Total int64
		Count int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.PurchaseRequest{}).
		Select("COALESCE(SUM(rating), 0) AS total, COUNT(*) AS count").
		Where("crop_id = ? AND has_been_reviewed = ?", cropID, true).
		Scan(&stats).Error
	if err != nil {
		return 0, 0, err
	}
	return stats.Total, stats.Count, nil
}

func (r *repository) ListForCrop(ctx context.Context, cropID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error) {
	query := r.db.WithContext(ctx).
		Model(&models.PurchaseRequest{}).
		Where("crop_id = ? AND has_been_reviewed = ?", cropID, true)
	query = pagination.Apply(query, "review_date", cursor, limit)

	var rows []models.PurchaseRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
