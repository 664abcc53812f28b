package stripewebhook

import (
	"context"
	"errors"

	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/idempotency"
)

// ConsumerName scopes webhook markers apart from the outbox consumers.
const ConsumerName = "stripe-webhook"

// IdempotencyGuard remembers Stripe event ids that were already applied.
type IdempotencyGuard struct {
	manager  *idempotency.Manager
	consumer string
}

func NewIdempotencyGuard(manager *idempotency.Manager, consumer string) (*IdempotencyGuard, error) {
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if consumer == "" {
		consumer = ConsumerName
	}
	return &IdempotencyGuard{manager: manager, consumer: consumer}, nil
}

// CheckAndMark returns true when eventID was seen before; otherwise it claims it.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, eventID string) (bool, error) {
	return g.manager.CheckAndMarkProcessed(ctx, g.consumer, eventID)
}

// Delete releases eventID so Stripe's retry is processed.
func (g *IdempotencyGuard) Delete(ctx context.Context, eventID string) error {
	return g.manager.Delete(ctx, g.consumer, eventID)
}
