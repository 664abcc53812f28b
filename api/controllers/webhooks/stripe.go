package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cropmarket-backend/api/responses"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
)

// Stripe events are a few KB; anything this large is not one.
const maxWebhookBodyBytes = 64 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

// EventGuard claims gateway event ids so each is applied once.
type EventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// EventVerifier checks the Stripe-Signature header and decodes the event.
type EventVerifier interface {
	VerifyEvent(payload []byte, header string) (stripe.Event, error)
}

type receipt struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// StripeWebhook verifies and applies Stripe payment events. Each event id is
// applied at most once; a failed apply releases the id so Stripe's retry runs.
func StripeWebhook(svc StripeWebhookService, verifier EventVerifier, guard EventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || verifier == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		event, err := readEvent(w, r, verifier)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})
		}

		seen, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if seen {
			if logg != nil {
				logg.Info(ctx, "stripe event already processed")
			}
			responses.WriteSuccess(w, receipt{Received: true, Duplicate: true})
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			// release on a context that outlives a client disconnect
			if relErr := guard.Delete(context.WithoutCancel(ctx), event.ID); relErr != nil && logg != nil {
				logg.Error(ctx, "release stripe event marker", relErr)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteSuccess(w, receipt{Received: true})
	}
}

// readEvent reads the bounded body and verifies its signature.
func readEvent(w http.ResponseWriter, r *http.Request, verifier EventVerifier) (stripe.Event, error) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook payload too large")
		}
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}

	header := r.Header.Get("Stripe-Signature")
	if header == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeInvalidSignature, "stripe signature missing")
	}
	event, err := verifier.VerifyEvent(payload, header)
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeInvalidSignature, err, "verify signature")
	}
	return event, nil
}
