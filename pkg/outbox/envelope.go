package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

// CurrentEnvelopeVersion is written on every new event. Readers accept any
// version from 1 up to it.
const CurrentEnvelopeVersion = 1

var (
	ErrEnvelopeVersion = errors.New("unsupported envelope version")
	ErrEnvelopeData    = errors.New("envelope data missing")
)

// ActorRef identifies who triggered the event.
type ActorRef struct {
	UserID uuid.UUID  `json:"userId"`
	Role   enums.Role `json:"role,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what goes out as
// the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func encodeEnvelope(eventID uuid.UUID, event DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", event.EventType, err)
	}
	if isEmptyJSON(data) {
		return nil, fmt.Errorf("%w for %s", ErrEnvelopeData, event.EventType)
	}
	version := event.Version
	if version == 0 {
		version = CurrentEnvelopeVersion
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	return json.Marshal(PayloadEnvelope{
		Version:    version,
		EventID:    eventID.String(),
		OccurredAt: occurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	})
}

// DecodeEnvelope parses a stored or received payload and checks the fields
// every consumer relies on.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > CurrentEnvelopeVersion {
		return env, fmt.Errorf("%w %d", ErrEnvelopeVersion, env.Version)
	}
	if _, err := uuid.Parse(env.EventID); err != nil {
		return env, fmt.Errorf("envelope event id %q: %w", env.EventID, err)
	}
	if isEmptyJSON(env.Data) {
		return env, ErrEnvelopeData
	}
	return env, nil
}

func isEmptyJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
