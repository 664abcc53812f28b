package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Crop is a farmer's listing. RemainingQuantity is the contended counter and
// only moves through the guarded confirmation path or a restock.
type Crop struct {
	ID                uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	FarmerID          uuid.UUID      `gorm:"column:farmer_id;type:uuid;not null;index"`
	Name              string         `gorm:"column:name;type:text;not null"`
	CropType          string         `gorm:"column:crop_type;type:text;not null"`
	Unit              string         `gorm:"column:unit;type:text;not null;default:'kg'"`
	PricePerUnitCents int64          `gorm:"column:price_per_unit_cents;not null"`
	ListedQuantity    int64          `gorm:"column:listed_quantity;not null"`
	RemainingQuantity int64          `gorm:"column:remaining_quantity;not null"`
	LowStockThreshold int64          `gorm:"column:low_stock_threshold;not null"`
	CreatedAt         time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Crop) TableName() string { return "crops" }

func (c *Crop) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// IsLowStock reports whether remaining stock sits at or below the threshold.
func (c Crop) IsLowStock() bool {
	return c.RemainingQuantity <= c.LowStockThreshold
}
