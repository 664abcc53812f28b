// Package registry maps outbox event types to their payload schemas so the
// publisher and the consumers agree on what each message carries.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is a decoded outbox row or Pub/Sub message.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks failures that will not succeed on a later attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsNonRetryable reports whether err, or anything it wraps, is a NonRetryableError.
func IsNonRetryable(err error) bool {
	var target NonRetryableError
	return errors.As(err, &target)
}

func nonRetryablef(format string, args ...interface{}) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

func schema[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		PayloadFactory: func() interface{} { return new(T) },
	}
}

func schemas() []EventDescriptor {
	return []EventDescriptor{
		schema[payloads.PurchaseRequestCreatedEvent](enums.EventPurchaseRequestCreated, enums.AggregatePurchaseRequest),
		schema[payloads.PurchaseConfirmedEvent](enums.EventPurchaseConfirmed, enums.AggregatePurchaseRequest),
		schema[payloads.PurchaseDeletedEvent](enums.EventPurchaseDeleted, enums.AggregatePurchaseRequest),
		schema[payloads.PurchaseReviewedEvent](enums.EventPurchaseReviewed, enums.AggregatePurchaseRequest),
		schema[payloads.CropLowStockEvent](enums.EventCropLowStock, enums.AggregateCrop),
		schema[payloads.PaymentStatusEvent](enums.EventPaymentInitiated, enums.AggregatePayment),
		schema[payloads.PaymentStatusEvent](enums.EventPaymentCompleted, enums.AggregatePayment),
		schema[payloads.PaymentStatusEvent](enums.EventPaymentFailed, enums.AggregatePayment),
		schema[payloads.PaymentStatusEvent](enums.EventPaymentCancelled, enums.AggregatePayment),
	}
}

// NewEventRegistry routes every lifecycle event to the configured events
// topic. Consumers filter on the event_type attribute.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.EventsTopic)
	if topic == "" {
		return nil, fmt.Errorf("events topic is required")
	}

	all := schemas()
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(all))}
	for _, desc := range all {
		desc.Topic = topic
		reg.entries[desc.EventType] = desc
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.entries[eventType]
	return desc, ok
}

// EventTypes lists the registered event types in lexical order.
func (r *EventRegistry) EventTypes() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(r.entries))
	for eventType := range r.entries {
		out = append(out, eventType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve checks an outbox row against its descriptor and decodes the payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryablef("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryablef("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryablef("missing aggregate_id")
	}
	return desc.decode(event.Payload)
}

// DecodeMessage decodes a delivered envelope for eventType.
func (r *EventRegistry) DecodeMessage(eventType enums.OutboxEventType, data []byte) (*ResolvedEvent, error) {
	desc, ok := r.entries[eventType]
	if !ok {
		return nil, nonRetryablef("unsupported event type %s", eventType)
	}
	return desc.decode(data)
}

func (d EventDescriptor) decode(raw []byte) (*ResolvedEvent, error) {
	envelope, err := outbox.DecodeEnvelope(raw)
	if err != nil {
		return nil, nonRetryablef("%s: %w", d.EventType, err)
	}
	if d.PayloadFactory == nil {
		return nil, nonRetryablef("no payload schema for %s", d.EventType)
	}
	payload := d.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryablef("decode %s payload: %w", d.EventType, err)
	}
	return &ResolvedEvent{Descriptor: d, Envelope: envelope, Payload: payload}, nil
}
