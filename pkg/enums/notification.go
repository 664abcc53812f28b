package enums

// NotificationType classifies in-app notifications and dispatcher templates.
type NotificationType string

const (
	NotificationTypePurchaseRequested NotificationType = "purchase_requested"
	NotificationTypePurchaseConfirmed NotificationType = "purchase_confirmed"
	NotificationTypePurchaseDeleted   NotificationType = "purchase_deleted"
	NotificationTypeCropLowStock      NotificationType = "crop_low_stock"
	NotificationTypePaymentInitiated  NotificationType = "payment_initiated"
	NotificationTypePaymentCompleted  NotificationType = "payment_completed"
	NotificationTypePaymentFailed     NotificationType = "payment_failed"
	NotificationTypePaymentCancelled  NotificationType = "payment_cancelled"
	NotificationTypePurchaseReviewed  NotificationType = "purchase_reviewed"
)

var validNotificationTypes = []NotificationType{
	NotificationTypePurchaseRequested,
	NotificationTypePurchaseConfirmed,
	NotificationTypePurchaseDeleted,
	NotificationTypeCropLowStock,
	NotificationTypePaymentInitiated,
	NotificationTypePaymentCompleted,
	NotificationTypePaymentFailed,
	NotificationTypePaymentCancelled,
	NotificationTypePurchaseReviewed,
}

// IsValid checks whether the given type matches the canonical enum.
func (n NotificationType) IsValid() bool {
	return member(validNotificationTypes, n)
}

// ParseNotificationType converts raw strings into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	return parse(validNotificationTypes, "notification type", value)
}
