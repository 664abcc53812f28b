package crops

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

// CreateCropInput lists a new crop for a farmer.
type CreateCropInput struct {
	FarmerID          uuid.UUID
	Name              string
	CropType          string
	Unit              string
	PricePerUnitCents int64
	Quantity          int64
	LowStockThreshold *int64
}

// UpdateCropInput carries the editable listing fields. Nil fields are left alone.
type UpdateCropInput struct {
	CropID            uuid.UUID
	FarmerID          uuid.UUID
	Name              *string
	CropType          *string
	PricePerUnitCents *int64
	LowStockThreshold *int64
}

// ListFilters narrows ListCrops.
type ListFilters struct {
	FarmerID *uuid.UUID
	CropType string
	Params   pagination.Params
}
