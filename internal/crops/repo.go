package crops

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	dbpkg "github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

// Repository persists crop listings and owns the guarded stock counter.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, crop *models.Crop) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Crop, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Crop, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Reserve(ctx context.Context, id uuid.UUID, qty int64) (bool, error)
	Release(ctx context.Context, id uuid.UUID, qty int64) error
	Restock(ctx context.Context, id uuid.UUID, qty int64) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor) ([]models.Crop, error)
}

var errReleaseRejected = errors.New("release would exceed listed quantity")

type repository struct {
	db *gorm.DB
}

// NewRepository builds a crops repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, crop *models.Crop) error {
	return r.db.WithContext(ctx).Create(crop).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Crop, error) {
	var crop models.Crop
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&crop).Error; err != nil {
		return nil, err
	}
	return &crop, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Crop, error) {
	query := r.db.WithContext(ctx).Where("id = ?", id)
	if dbpkg.SupportsRowLocks(r.db) {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var crop models.Crop
	if err := query.First(&crop).Error; err != nil {
		return nil, err
	}
	return &crop, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Crop{}).Where("id = ?", id).Updates(updates).Error
}

// Reserve decrements remaining_quantity only when enough stock is left. The
// check and the write are one statement, so concurrent callers cannot both win
// the last units. It returns false when the guard rejected the decrement.
func (r *repository) Reserve(ctx context.Context, id uuid.UUID, qty int64) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE crops
		 SET remaining_quantity = remaining_quantity - ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL AND remaining_quantity >= ?`,
		qty, id, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Release returns previously reserved units. It ignores deleted_at so history
// stays consistent even for delisted crops.
func (r *repository) Release(ctx context.Context, id uuid.UUID, qty int64) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE crops
		 SET remaining_quantity = remaining_quantity + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND remaining_quantity + ? <= listed_quantity`,
		qty, id, qty,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errReleaseRejected
	}
	return nil
}

// Restock grows listed and remaining together.
func (r *repository) Restock(ctx context.Context, id uuid.UUID, qty int64) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE crops
		 SET listed_quantity = listed_quantity + ?, remaining_quantity = remaining_quantity + ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		qty, qty, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Crop{}).Error
}

func (r *repository) List(ctx context.Context, filters ListFilters, cursor *pagination.Cursor) ([]models.Crop, error) {
	query := r.db.WithContext(ctx).Model(&models.Crop{})
	if filters.FarmerID != nil {
		query = query.Where("farmer_id = ?", *filters.FarmerID)
	}
	if cropType := strings.TrimSpace(filters.CropType); cropType != "" {
		query = query.Where("crop_type = ?", cropType)
	}
	query = pagination.Apply(query, "created_at", cursor, filters.Params.Limit)

	var rows []models.Crop
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
