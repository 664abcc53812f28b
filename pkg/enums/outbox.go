package enums

// OutboxAggregateType names the entity an outbox event describes.
type OutboxAggregateType string

const (
	AggregatePurchaseRequest OutboxAggregateType = "purchase_request"
	AggregateCrop            OutboxAggregateType = "crop"
	AggregatePayment         OutboxAggregateType = "payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePurchaseRequest,
	AggregateCrop,
	AggregatePayment,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	return member(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(validAggregateTypes, "aggregate type", value)
}

// OutboxEventType names a lifecycle transition recorded in the outbox.
type OutboxEventType string

const (
	EventPurchaseRequestCreated OutboxEventType = "purchase_request_created"
	EventPurchaseConfirmed      OutboxEventType = "purchase_confirmed"
	EventPurchaseDeleted        OutboxEventType = "purchase_deleted"
	EventPurchaseReviewed       OutboxEventType = "purchase_reviewed"
	EventCropLowStock           OutboxEventType = "crop_low_stock"
	EventPaymentInitiated       OutboxEventType = "payment_initiated"
	EventPaymentCompleted       OutboxEventType = "payment_completed"
	EventPaymentFailed          OutboxEventType = "payment_failed"
	EventPaymentCancelled       OutboxEventType = "payment_cancelled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventPurchaseRequestCreated,
	EventPurchaseConfirmed,
	EventPurchaseDeleted,
	EventPurchaseReviewed,
	EventCropLowStock,
	EventPaymentInitiated,
	EventPaymentCompleted,
	EventPaymentFailed,
	EventPaymentCancelled,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	return member(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(validOutboxEventTypes, "event type", value)
}
