package payloads

import (
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/google/uuid"
)

// PurchaseRequestCreatedEvent tells the farmer a dealer asked for their crop.
type PurchaseRequestCreatedEvent struct {
	PurchaseID        uuid.UUID `json:"purchase_id"`
	CropID            uuid.UUID `json:"crop_id"`
	CropName          string    `json:"crop_name"`
	DealerID          uuid.UUID `json:"dealer_id"`
	FarmerID          uuid.UUID `json:"farmer_id"`
	QuantityRequested int64     `json:"quantity_requested"`
	RequestedAt       time.Time `json:"requested_at"`
}

// PurchaseConfirmedEvent tells the dealer stock has been reserved.
type PurchaseConfirmedEvent struct {
	PurchaseID        uuid.UUID `json:"purchase_id"`
	CropID            uuid.UUID `json:"crop_id"`
	CropName          string    `json:"crop_name"`
	DealerID          uuid.UUID `json:"dealer_id"`
	FarmerID          uuid.UUID `json:"farmer_id"`
	QuantityRequested int64     `json:"quantity_requested"`
	UnitPriceCents    int64     `json:"unit_price_cents"`
	ConfirmedAt       time.Time `json:"confirmed_at"`
}

// PurchaseDeletedEvent records a dealer withdrawing a request.
type PurchaseDeletedEvent struct {
	PurchaseID        uuid.UUID `json:"purchase_id"`
	CropID            uuid.UUID `json:"crop_id"`
	DealerID          uuid.UUID `json:"dealer_id"`
	FarmerID          uuid.UUID `json:"farmer_id"`
	WasConfirmed      bool      `json:"was_confirmed"`
	RestockedQuantity int64     `json:"restocked_quantity"`
}

// CropLowStockEvent warns the farmer remaining stock hit the threshold.
type CropLowStockEvent struct {
	CropID            uuid.UUID `json:"crop_id"`
	CropName          string    `json:"crop_name"`
	FarmerID          uuid.UUID `json:"farmer_id"`
	RemainingQuantity int64     `json:"remaining_quantity"`
	Threshold         int64     `json:"threshold"`
}

// PaymentStatusEvent is shared by every payment transition.
type PaymentStatusEvent struct {
	PaymentID        uuid.UUID               `json:"payment_id"`
	PurchaseID       uuid.UUID               `json:"purchase_id"`
	DealerID         uuid.UUID               `json:"dealer_id"`
	FarmerID         uuid.UUID               `json:"farmer_id"`
	AmountCents      int64                   `json:"amount_cents"`
	Currency         string                  `json:"currency"`
	Status           enums.TransactionStatus `json:"status"`
	ExternalIntentID string                  `json:"external_intent_id"`
	FailureReason    *string                 `json:"failure_reason,omitempty"`
}

// PurchaseReviewedEvent tells the farmer a dealer rated the purchase.
type PurchaseReviewedEvent struct {
	PurchaseID uuid.UUID `json:"purchase_id"`
	CropID     uuid.UUID `json:"crop_id"`
	DealerID   uuid.UUID `json:"dealer_id"`
	FarmerID   uuid.UUID `json:"farmer_id"`
	Rating     int       `json:"rating"`
	ReviewText *string   `json:"review_text,omitempty"`
}
