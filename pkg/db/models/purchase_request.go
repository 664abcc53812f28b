package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PurchaseRequest is a dealer's request for a quantity of a crop. It becomes
// binding once confirmed and may carry exactly one review.
type PurchaseRequest struct {
	ID                           uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	CropID                       uuid.UUID      `gorm:"column:crop_id;type:uuid;not null;index"`
	DealerID                     uuid.UUID      `gorm:"column:dealer_id;type:uuid;not null;index"`
	FarmerID                     uuid.UUID      `gorm:"column:farmer_id;type:uuid;not null;index"`
	QuantityRequested            int64          `gorm:"column:quantity_requested;not null"`
	RequestedAt                  time.Time      `gorm:"column:requested_at;not null"`
	IsConfirmed                  bool           `gorm:"column:is_confirmed;not null;default:false"`
	ConfirmedAt                  *time.Time     `gorm:"column:confirmed_at"`
	UnitPriceCentsAtConfirmation *int64         `gorm:"column:unit_price_cents_at_confirmation"`
	Rating                       *int           `gorm:"column:rating"`
	ReviewText                   *string        `gorm:"column:review_text;type:text"`
	ReviewDate                   *time.Time     `gorm:"column:review_date"`
	HasBeenReviewed              bool           `gorm:"column:has_been_reviewed;not null;default:false"`
	CreatedAt                    time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                    time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt                    gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (PurchaseRequest) TableName() string { return "purchase_requests" }

func (p *PurchaseRequest) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.RequestedAt.IsZero() {
		p.RequestedAt = time.Now().UTC()
	}
	return nil
}
