package purchases

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/internal/payments"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/money"
)

type createPurchaseRequest struct {
	CropID   string `json:"crop_id" validate:"required,uuid"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

type reviewRequest struct {
	Rating     int     `json:"rating"`
	ReviewText *string `json:"review_text"`
}

// PurchaseResponse is the public view of a purchase request.
type PurchaseResponse struct {
	ID                uuid.UUID        `json:"id"`
	CropID            uuid.UUID        `json:"crop_id"`
	DealerID          uuid.UUID        `json:"dealer_id"`
	FarmerID          uuid.UUID        `json:"farmer_id"`
	QuantityRequested int64            `json:"quantity_requested"`
	RequestedAt       time.Time        `json:"requested_at"`
	IsConfirmed       bool             `json:"is_confirmed"`
	ConfirmedAt       *time.Time       `json:"confirmed_at,omitempty"`
	UnitPrice         *string          `json:"unit_price,omitempty"`
	Total             *string          `json:"total,omitempty"`
	HasBeenReviewed   bool             `json:"has_been_reviewed"`
	Rating            *int             `json:"rating,omitempty"`
	ReviewText        *string          `json:"review_text,omitempty"`
	ReviewDate        *time.Time       `json:"review_date,omitempty"`
	Payment           *PaymentResponse `json:"payment,omitempty"`
}

// PaymentResponse summarises the payment attached to a purchase.
type PaymentResponse struct {
	ID                uuid.UUID               `json:"id"`
	Amount            string                  `json:"amount"`
	AmountCents       int64                   `json:"amount_cents"`
	Currency          string                  `json:"currency"`
	TransactionStatus enums.TransactionStatus `json:"transaction_status"`
	CanBeReviewed     bool                    `json:"can_be_reviewed"`
	FailureReason     *string                 `json:"failure_reason,omitempty"`
	TransactionDate   *time.Time              `json:"transaction_date,omitempty"`
}

// IntentResponse carries what the dealer's client needs to finish checkout.
type IntentResponse struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	ClientSecret string    `json:"client_secret"`
	Amount       string    `json:"amount"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency"`
}

func newPurchaseResponse(p *models.PurchaseRequest) PurchaseResponse {
	resp := PurchaseResponse{
		ID:                p.ID,
		CropID:            p.CropID,
		DealerID:          p.DealerID,
		FarmerID:          p.FarmerID,
		QuantityRequested: p.QuantityRequested,
		RequestedAt:       p.RequestedAt,
		IsConfirmed:       p.IsConfirmed,
		ConfirmedAt:       p.ConfirmedAt,
		HasBeenReviewed:   p.HasBeenReviewed,
		Rating:            p.Rating,
		ReviewText:        p.ReviewText,
		ReviewDate:        p.ReviewDate,
	}
	if p.UnitPriceCentsAtConfirmation != nil {
		unit := money.Cents(*p.UnitPriceCentsAtConfirmation).String()
		resp.UnitPrice = &unit
		if total, err := money.Multiply(*p.UnitPriceCentsAtConfirmation, p.QuantityRequested); err == nil {
			rendered := total.String()
			resp.Total = &rendered
		}
	}
	return resp
}

func newPaymentResponse(p *models.Payment) *PaymentResponse {
	if p == nil {
		return nil
	}
	return &PaymentResponse{
		ID:                p.ID,
		Amount:            money.Cents(p.AmountCents).String(),
		AmountCents:       p.AmountCents,
		Currency:          p.Currency,
		TransactionStatus: p.TransactionStatus,
		CanBeReviewed:     p.CanBeReviewed,
		FailureReason:     p.FailureReason,
		TransactionDate:   p.TransactionDate,
	}
}

func newIntentResponse(result *payments.IntentResult) IntentResponse {
	return IntentResponse{
		PaymentID:    result.PaymentID,
		ClientSecret: result.ClientSecret,
		Amount:       money.Cents(result.AmountCents).String(),
		AmountCents:  result.AmountCents,
		Currency:     result.Currency,
	}
}
