package notifications

import (
	"fmt"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/money"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

type notice struct {
	Recipient uuid.UUID
	Kind      enums.NotificationType
	Title     string
	Message   string
	Link      string
	Args      map[string]any
}

func purchaseLink(id uuid.UUID) string { return fmt.Sprintf("/purchases/%s", id) }

func cropLink(id uuid.UUID) string { return fmt.Sprintf("/crops/%s", id) }

// noticesFor maps a decoded lifecycle event to the users who should hear about it.
func noticesFor(eventType enums.OutboxEventType, payload any) []notice {
	switch p := payload.(type) {
	case *payloads.PurchaseRequestCreatedEvent:
		return []notice{{
			Recipient: p.FarmerID,
			Kind:      enums.NotificationTypePurchaseRequested,
			Title:     "New purchase request",
			Message:   fmt.Sprintf("A dealer requested %d of %s.", p.QuantityRequested, p.CropName),
			Link:      purchaseLink(p.PurchaseID),
			Args:      map[string]any{"purchase_id": p.PurchaseID, "crop_name": p.CropName, "quantity": p.QuantityRequested},
		}}
	case *payloads.PurchaseConfirmedEvent:
		return []notice{{
			Recipient: p.DealerID,
			Kind:      enums.NotificationTypePurchaseConfirmed,
			Title:     "Purchase confirmed",
			Message:   fmt.Sprintf("Your request for %d of %s was confirmed at %s per unit.", p.QuantityRequested, p.CropName, money.Cents(p.UnitPriceCents)),
			Link:      purchaseLink(p.PurchaseID),
			Args:      map[string]any{"purchase_id": p.PurchaseID, "crop_name": p.CropName, "quantity": p.QuantityRequested},
		}}
	case *payloads.PurchaseDeletedEvent:
		return []notice{{
			Recipient: p.FarmerID,
			Kind:      enums.NotificationTypePurchaseDeleted,
			Title:     "Purchase request withdrawn",
			Message:   deletedMessage(p),
			Args:      map[string]any{"purchase_id": p.PurchaseID, "restocked": p.RestockedQuantity},
		}}
	case *payloads.CropLowStockEvent:
		return []notice{{
			Recipient: p.FarmerID,
			Kind:      enums.NotificationTypeCropLowStock,
			Title:     "Low stock",
			Message:   fmt.Sprintf("%s is down to %d (threshold %d).", p.CropName, p.RemainingQuantity, p.Threshold),
			Link:      cropLink(p.CropID),
			Args:      map[string]any{"crop_id": p.CropID, "remaining": p.RemainingQuantity},
		}}
	case *payloads.PurchaseReviewedEvent:
		return []notice{{
			Recipient: p.FarmerID,
			Kind:      enums.NotificationTypePurchaseReviewed,
			Title:     "New review",
			Message:   fmt.Sprintf("A dealer rated a purchase %d out of 5.", p.Rating),
			Link:      purchaseLink(p.PurchaseID),
			Args:      map[string]any{"purchase_id": p.PurchaseID, "rating": p.Rating},
		}}
	case *payloads.PaymentStatusEvent:
		return paymentNotices(eventType, p)
	}
	return nil
}

func deletedMessage(p *payloads.PurchaseDeletedEvent) string {
	if p.WasConfirmed && p.RestockedQuantity > 0 {
		return fmt.Sprintf("A dealer withdrew a confirmed request; %d units were returned to stock.", p.RestockedQuantity)
	}
	return "A dealer withdrew a purchase request."
}

func paymentNotices(eventType enums.OutboxEventType, p *payloads.PaymentStatusEvent) []notice {
	amount := money.Cents(p.AmountCents).String()
	args := map[string]any{"purchase_id": p.PurchaseID, "payment_id": p.PaymentID, "amount": amount, "currency": p.Currency}
	link := purchaseLink(p.PurchaseID)

	switch eventType {
	case enums.EventPaymentInitiated:
		return []notice{{
			Recipient: p.FarmerID,
			Kind:      enums.NotificationTypePaymentInitiated,
			Title:     "Payment started",
			Message:   fmt.Sprintf("The dealer started a payment of %s %s.", amount, p.Currency),
			Link:      link,
			Args:      args,
		}}
	case enums.EventPaymentCompleted:
		return []notice{
			{
				Recipient: p.FarmerID,
				Kind:      enums.NotificationTypePaymentCompleted,
				Title:     "Payment received",
				Message:   fmt.Sprintf("Payment of %s %s completed.", amount, p.Currency),
				Link:      link,
				Args:      args,
			},
			{
				Recipient: p.DealerID,
				Kind:      enums.NotificationTypePaymentCompleted,
				Title:     "Payment completed",
				Message:   fmt.Sprintf("Your payment of %s %s completed. You can now review the purchase.", amount, p.Currency),
				Link:      link,
				Args:      args,
			},
		}
	case enums.EventPaymentFailed:
		message := fmt.Sprintf("Your payment of %s %s failed.", amount, p.Currency)
		if p.FailureReason != nil && *p.FailureReason != "" {
			message = fmt.Sprintf("Your payment of %s %s failed: %s", amount, p.Currency, *p.FailureReason)
		}
		return []notice{{
			Recipient: p.DealerID,
			Kind:      enums.NotificationTypePaymentFailed,
			Title:     "Payment failed",
			Message:   message,
			Link:      link,
			Args:      args,
		}}
	case enums.EventPaymentCancelled:
		return []notice{{
			Recipient: p.DealerID,
			Kind:      enums.NotificationTypePaymentCancelled,
			Title:     "Payment cancelled",
			Message:   fmt.Sprintf("Your payment of %s %s was cancelled.", amount, p.Currency),
			Link:      link,
			Args:      args,
		}}
	}
	return nil
}
