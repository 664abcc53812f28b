package payments

import (
	"context"

	pkgstripe "github.com/angelmondragon/cropmarket-backend/pkg/stripe"
)

// Gateway is the external payment processor. *pkgstripe.PaymentIntents
// satisfies it in production.
type Gateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*pkgstripe.Intent, error)
	GetIntent(ctx context.Context, intentID string) (*pkgstripe.Intent, error)
	CancelIntent(ctx context.Context, intentID, reason string) error
}

var _ Gateway = (*pkgstripe.PaymentIntents)(nil)
