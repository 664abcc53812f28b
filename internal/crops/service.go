package crops

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

const (
	defaultUnit   = "kg"
	maxNameLength = 120
)

var (
	ErrCropNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "crop not found")
	ErrCropNotOwned = pkgerrors.NewReason(pkgerrors.CodeForbidden, pkgerrors.ReasonCropNotOwned, "crop does not belong to farmer")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages a farmer's crop listings.
type Service interface {
	Create(ctx context.Context, input CreateCropInput) (*models.Crop, error)
	Update(ctx context.Context, input UpdateCropInput) (*models.Crop, error)
	Restock(ctx context.Context, cropID, farmerID uuid.UUID, qty int64) (*models.Crop, error)
	Delete(ctx context.Context, cropID, farmerID uuid.UUID) error
	Get(ctx context.Context, cropID uuid.UUID) (*models.Crop, error)
	List(ctx context.Context, filters ListFilters) (pagination.Page[models.Crop], error)
}

type service struct {
	repo             Repository
	tx               txRunner
	defaultThreshold int64
}

// NewService builds the crop service. defaultThreshold applies when a listing
// does not set its own low-stock threshold.
func NewService(repo Repository, tx txRunner, defaultThreshold int64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("crops repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if defaultThreshold < 0 {
		defaultThreshold = 0
	}
	return &service{repo: repo, tx: tx, defaultThreshold: defaultThreshold}, nil
}

func (s *service) Create(ctx context.Context, input CreateCropInput) (*models.Crop, error) {
	if input.FarmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	name, err := validateName(input.Name, "name")
	if err != nil {
		return nil, err
	}
	cropType, err := validateName(input.CropType, "crop_type")
	if err != nil {
		return nil, err
	}
	if input.PricePerUnitCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_per_unit_cents must be positive")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	threshold := s.defaultThreshold
	if input.LowStockThreshold != nil {
		if *input.LowStockThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must not be negative")
		}
		threshold = *input.LowStockThreshold
	}
	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		unit = defaultUnit
	}

	crop := &models.Crop{
		FarmerID:          input.FarmerID,
		Name:              name,
		CropType:          cropType,
		Unit:              unit,
		PricePerUnitCents: input.PricePerUnitCents,
		ListedQuantity:    input.Quantity,
		RemainingQuantity: input.Quantity,
		LowStockThreshold: threshold,
	}
	if err := s.repo.Create(ctx, crop); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create crop")
	}
	return crop, nil
}

func (s *service) Update(ctx context.Context, input UpdateCropInput) (*models.Crop, error) {
	updates := map[string]any{}
	if input.Name != nil {
		name, err := validateName(*input.Name, "name")
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if input.CropType != nil {
		cropType, err := validateName(*input.CropType, "crop_type")
		if err != nil {
			return nil, err
		}
		updates["crop_type"] = cropType
	}
	if input.PricePerUnitCents != nil {
		if *input.PricePerUnitCents <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_per_unit_cents must be positive")
		}
		updates["price_per_unit_cents"] = *input.PricePerUnitCents
	}
	if input.LowStockThreshold != nil {
		if *input.LowStockThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "low_stock_threshold must not be negative")
		}
		updates["low_stock_threshold"] = *input.LowStockThreshold
	}

	var updated *models.Crop
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.loadOwned(ctx, repo, input.CropID, input.FarmerID); err != nil {
			return err
		}
		if err := repo.Update(ctx, input.CropID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update crop")
		}
		crop, err := repo.FindByID(ctx, input.CropID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload crop")
		}
		updated = crop
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Restock(ctx context.Context, cropID, farmerID uuid.UUID, qty int64) (*models.Crop, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	var restocked *models.Crop
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.loadOwned(ctx, repo, cropID, farmerID); err != nil {
			return err
		}
		if err := repo.Restock(ctx, cropID, qty); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCropNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock crop")
		}
		crop, err := repo.FindByID(ctx, cropID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload crop")
		}
		restocked = crop
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restocked, nil
}

func (s *service) Delete(ctx context.Context, cropID, farmerID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.loadOwned(ctx, repo, cropID, farmerID); err != nil {
			return err
		}
		if err := repo.SoftDelete(ctx, cropID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete crop")
		}
		return nil
	})
}

func (s *service) Get(ctx context.Context, cropID uuid.UUID) (*models.Crop, error) {
	if cropID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crop id required")
	}
	crop, err := s.repo.FindByID(ctx, cropID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCropNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crop")
	}
	return crop, nil
}

func (s *service) List(ctx context.Context, filters ListFilters) (pagination.Page[models.Crop], error) {
	cursor, err := pagination.ParseCursor(filters.Params.Cursor)
	if err != nil {
		return pagination.Page[models.Crop]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filters, cursor)
	if err != nil {
		return pagination.Page[models.Crop]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list crops")
	}
	return pagination.Build(rows, filters.Params.Limit, func(c models.Crop) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	}), nil
}

func (s *service) loadOwned(ctx context.Context, repo Repository, cropID, farmerID uuid.UUID) (*models.Crop, error) {
	if cropID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crop id required")
	}
	if farmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	crop, err := repo.FindByIDForUpdate(ctx, cropID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCropNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crop")
	}
	if crop.FarmerID != farmerID {
		return nil, ErrCropNotOwned
	}
	return crop, nil
}

func validateName(raw, field string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
	}
	if len(value) > maxNameLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", field, maxNameLength))
	}
	return value, nil
}
