// Package idempotency remembers which event ids a consumer already handled.
// Outbox event UUIDs and Stripe event ids share the same keyspace, scoped by
// consumer name.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/instance"
	"github.com/angelmondragon/cropmarket-backend/pkg/redis"
)

// DefaultTTL covers Pub/Sub's 7 day retention and Stripe's 3 day retry window.
const DefaultTTL = 7 * 24 * time.Hour

var (
	errConsumerRequired = errors.New("consumer name is required")
	errEventIDRequired  = errors.New("event id is required")
)

// Manager stores one marker per (consumer, event id) under
// cm:idempotency:evt:processed:<consumer>:<event_id>. The marker value names
// the instance that claimed the event and when.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	now   func() time.Time
}

// NewManager builds a Manager. A zero ttl falls back to DefaultTTL.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("idempotency store is required")
	case ttl < 0:
		return nil, errors.New("ttl must be non-negative")
	case ttl == 0:
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It returns true when the
// event was claimed before, in which case the caller must skip it.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.marker(), m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s for %s: %w", eventID, consumer, err)
	}
	return !claimed, nil
}

// Holder returns the marker of a claimed event: "<instance>@<RFC3339 time>".
// It returns redis.Nil when the event was never claimed or the marker expired.
func (m *Manager) Holder(ctx context.Context, consumer, eventID string) (string, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return "", err
	}
	return m.store.Get(ctx, key)
}

// Delete releases the marker so a redelivery is processed again. Callers use
// it when handling failed after the claim.
func (m *Manager) Delete(ctx context.Context, consumer, eventID string) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	if err := m.store.Del(ctx, key); err != nil {
		return fmt.Errorf("release %s for %s: %w", eventID, consumer, err)
	}
	return nil
}

func (m *Manager) marker() string {
	return instance.GetID() + "@" + m.now().UTC().Format(time.RFC3339)
}

func (m *Manager) key(consumer, eventID string) (string, error) {
	consumer = strings.TrimSpace(consumer)
	eventID = strings.TrimSpace(eventID)
	switch {
	case consumer == "":
		return "", errConsumerRequired
	case eventID == "":
		return "", errEventIDRequired
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID), nil
}
