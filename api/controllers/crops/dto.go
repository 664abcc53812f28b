package crops

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/internal/reviews"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/money"
)

type createCropRequest struct {
	Name              string `json:"name" validate:"required,notblank,max=120"`
	CropType          string `json:"crop_type" validate:"required,notblank,max=60"`
	Unit              string `json:"unit" validate:"omitempty,max=20"`
	PricePerUnitCents int64  `json:"price_per_unit_cents" validate:"gt=0"`
	Quantity          int64  `json:"quantity" validate:"gte=0"`
	LowStockThreshold *int64 `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

type updateCropRequest struct {
	Name              *string `json:"name" validate:"omitempty,notblank,max=120"`
	CropType          *string `json:"crop_type" validate:"omitempty,notblank,max=60"`
	PricePerUnitCents *int64  `json:"price_per_unit_cents" validate:"omitempty,gt=0"`
	LowStockThreshold *int64  `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

type restockRequest struct {
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

// CropResponse is the public crop listing with its rating aggregates.
type CropResponse struct {
	ID                uuid.UUID       `json:"id"`
	FarmerID          uuid.UUID       `json:"farmer_id"`
	Name              string          `json:"name"`
	CropType          string          `json:"crop_type"`
	Unit              string          `json:"unit"`
	PricePerUnitCents int64           `json:"price_per_unit_cents"`
	PricePerUnit      string          `json:"price_per_unit"`
	ListedQuantity    int64           `json:"listed_quantity"`
	RemainingQuantity int64           `json:"remaining_quantity"`
	LowStockThreshold int64           `json:"low_stock_threshold"`
	LowStock          bool            `json:"low_stock"`
	Rating            reviews.Summary `json:"rating"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func newCropResponse(crop *models.Crop, summary reviews.Summary) CropResponse {
	return CropResponse{
		ID:                crop.ID,
		FarmerID:          crop.FarmerID,
		Name:              crop.Name,
		CropType:          crop.CropType,
		Unit:              crop.Unit,
		PricePerUnitCents: crop.PricePerUnitCents,
		PricePerUnit:      money.Cents(crop.PricePerUnitCents).String(),
		ListedQuantity:    crop.ListedQuantity,
		RemainingQuantity: crop.RemainingQuantity,
		LowStockThreshold: crop.LowStockThreshold,
		LowStock:          crop.IsLowStock(),
		Rating:            summary,
		CreatedAt:         crop.CreatedAt,
		UpdatedAt:         crop.UpdatedAt,
	}
}
