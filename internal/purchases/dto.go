package purchases

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

// CreateRequestInput is a dealer asking for a quantity of a crop.
type CreateRequestInput struct {
	CropID   uuid.UUID
	DealerID uuid.UUID
	Quantity int64
}

// ConfirmInput identifies the farmer confirming a request.
type ConfirmInput struct {
	PurchaseID uuid.UUID
	FarmerID   uuid.UUID
}

// Actor is the authenticated principal reading or mutating a purchase.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}
