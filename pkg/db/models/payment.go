package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

// Payment mirrors the gateway state for a purchase. One row per purchase.
type Payment struct {
	ID                uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	PurchaseID        uuid.UUID               `gorm:"column:purchase_id;type:uuid;not null;uniqueIndex"`
	FarmerID          uuid.UUID               `gorm:"column:farmer_id;type:uuid;not null"`
	DealerID          uuid.UUID               `gorm:"column:dealer_id;type:uuid;not null"`
	CropID            uuid.UUID               `gorm:"column:crop_id;type:uuid;not null"`
	AmountCents       int64                   `gorm:"column:amount_cents;not null"`
	Currency          string                  `gorm:"column:currency;type:text;not null"`
	TransactionStatus enums.TransactionStatus `gorm:"column:transaction_status;type:text;not null"`
	CanBeReviewed     bool                    `gorm:"column:can_be_reviewed;not null;default:false"`
	ExternalIntentID  string                  `gorm:"column:external_intent_id;type:text;not null;uniqueIndex"`
	ExternalSessionID *string                 `gorm:"column:external_session_id;type:text"`
	FailureReason     *string                 `gorm:"column:failure_reason;type:text"`
	TransactionDate   *time.Time              `gorm:"column:transaction_date"`
	CreatedAt         time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
