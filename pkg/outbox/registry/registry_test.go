package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testTopic = "lifecycle-topic"

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg := testRegistry(t)
	purchaseID := uuid.New()

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventPurchaseConfirmed,
		AggregateType: enums.AggregatePurchaseRequest,
		AggregateID:   purchaseID,
		Payload: envelopeOf(t, payloads.PurchaseConfirmedEvent{
			PurchaseID:        purchaseID,
			CropID:            uuid.New(),
			DealerID:          uuid.New(),
			FarmerID:          uuid.New(),
			QuantityRequested: 40,
			UnitPriceCents:    250,
		}),
	})
	require.NoError(t, err)
	require.Equal(t, testTopic, resolved.Descriptor.Topic)
	require.NotEmpty(t, resolved.Envelope.EventID)
	require.False(t, resolved.Envelope.OccurredAt.IsZero())

	payload, ok := resolved.Payload.(*payloads.PurchaseConfirmedEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	require.Equal(t, purchaseID, payload.PurchaseID)
	require.EqualValues(t, 40, payload.QuantityRequested)
}

func TestEveryEventTypeIsRoutedToTheEventsTopic(t *testing.T) {
	reg := testRegistry(t)
	types := reg.EventTypes()
	require.Len(t, types, 9)
	for i, eventType := range types {
		if i > 0 && types[i-1] >= eventType {
			t.Fatalf("event types not sorted: %v", types)
		}
		desc, ok := reg.Descriptor(eventType)
		require.True(t, ok)
		require.Equal(t, testTopic, desc.Topic)
		require.NotNil(t, desc.PayloadFactory())
	}
}

func TestPaymentEventsShareOnePayloadSchema(t *testing.T) {
	reg := testRegistry(t)
	paymentID := uuid.New()
	data := envelopeOf(t, payloads.PaymentStatusEvent{
		PaymentID:   paymentID,
		AmountCents: 10000,
		Currency:    "usd",
		Status:      enums.TransactionStatusCompleted,
	})

	for _, eventType := range []enums.OutboxEventType{enums.EventPaymentCompleted, enums.EventPaymentFailed} {
		resolved, err := reg.DecodeMessage(eventType, data)
		require.NoError(t, err)
		payload, ok := resolved.Payload.(*payloads.PaymentStatusEvent)
		require.True(t, ok, "payload type %T", resolved.Payload)
		require.Equal(t, paymentID, payload.PaymentID)
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{EventsTopic: "  "})
	require.Error(t, err)
}

func TestResolveRejectsMalformedRows(t *testing.T) {
	reg := testRegistry(t)
	cases := map[string]models.OutboxEvent{
		"unknown event type": {
			EventType:     enums.OutboxEventType("crop_harvested"),
			AggregateType: enums.AggregateCrop,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, map[string]string{"reason": "none"}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventPurchaseConfirmed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, map[string]string{"purchase_id": uuid.NewString()}),
		},
		"missing aggregate id": {
			EventType:     enums.EventCropLowStock,
			AggregateType: enums.AggregateCrop,
			Payload:       envelopeOf(t, map[string]string{}),
		},
		"null payload": {
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       envelopeOf(t, nil),
		},
		"not an envelope": {
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`[1,2]`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			if !IsNonRetryable(err) {
				t.Fatalf("expected non-retryable error, got %T: %v", err, err)
			}
		})
	}
}

func TestDecodeMessageRejectsUnknownType(t *testing.T) {
	reg := testRegistry(t)
	_, err := reg.DecodeMessage("crop_harvested", envelopeOf(t, map[string]string{}))
	require.True(t, IsNonRetryable(err))
}

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{EventsTopic: testTopic})
	require.NoError(t, err)
	return reg
}

func envelopeOf(t *testing.T, payload interface{}) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return raw
}
