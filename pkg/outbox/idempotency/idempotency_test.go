package idempotency

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cropmarket-backend/pkg/redis"
)

// memoryStore mimics the SETNX semantics of the redis client.
type memoryStore struct {
	values  map[string]string
	ttls    map[string]time.Duration
	failSet error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.failSet != nil {
		return false, s.failSet
	}
	if _, ok := s.values[key]; ok {
		return false, nil
	}
	s.values[key] = value.(string)
	s.ttls[key] = ttl
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "cm:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

func TestCheckAndMarkProcessedClaimsOnce(t *testing.T) {
	t.Setenv("CROPMARKET_INSTANCE_ID", "worker-a")
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	manager.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }

	eventID := uuid.NewString()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", eventID)
	require.NoError(t, err)
	require.False(t, already)

	key := "cm:idempotency:evt:processed:notifications-worker:" + eventID
	require.Equal(t, 24*time.Hour, store.ttls[key])

	already, err = manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", eventID)
	require.NoError(t, err)
	require.True(t, already)

	holder, err := manager.Holder(context.Background(), "notifications-worker", eventID)
	require.NoError(t, err)
	require.Equal(t, "worker-a@2026-03-01T09:30:00Z", holder)
}

func TestConsumersDoNotShareMarkers(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", "evt_1")
	require.NoError(t, err)
	already, err := manager.CheckAndMarkProcessed(context.Background(), "stripe-webhook", "evt_1")
	require.NoError(t, err)
	require.False(t, already)
}

func TestDeleteAllowsReprocessing(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.CheckAndMarkProcessed(ctx, "stripe-webhook", "evt_2")
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "stripe-webhook", "evt_2"))

	_, err = manager.Holder(ctx, "stripe-webhook", "evt_2")
	require.ErrorIs(t, err, redis.Nil)

	already, err := manager.CheckAndMarkProcessed(ctx, "stripe-webhook", "evt_2")
	require.NoError(t, err)
	require.False(t, already)
}

func TestCheckAndMarkProcessedWrapsStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.failSet = errors.New("connection refused")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "notifications-worker", "evt_3")
	require.ErrorIs(t, err, store.failSet)
	require.True(t, strings.Contains(err.Error(), "notifications-worker"))
}

func TestManagerRejectsBadInput(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newMemoryStore(), -time.Second)
	require.Error(t, err)

	manager, err := NewManager(newMemoryStore(), 0)
	require.NoError(t, err)
	require.Equal(t, DefaultTTL, manager.ttl)

	_, err = manager.CheckAndMarkProcessed(context.Background(), " ", "evt_1")
	require.ErrorIs(t, err, errConsumerRequired)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "stripe-webhook", "  ")
	require.ErrorIs(t, err, errEventIDRequired)
}
