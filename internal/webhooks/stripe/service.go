package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cropmarket-backend/internal/payments"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
)

type paymentUpdater interface {
	ApplyGatewayStatus(ctx context.Context, intentID string, status enums.TransactionStatus, failureReason *string) (payments.TransitionOutcome, error)
	RecordSession(ctx context.Context, intentID, sessionID string) (bool, error)
}

type ServiceParams struct {
	Payments paymentUpdater
	Logger   *logger.Logger
	Metrics  *metrics.LifecycleMetrics
}

// Service applies verified Stripe events to local payments.
type Service struct {
	payments paymentUpdater
	logg     *logger.Logger
	metrics  *metrics.LifecycleMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments service required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		payments: params.Payments,
		logg:     logg,
		metrics:  params.Metrics,
	}, nil
}

var intentStatusByEvent = map[stripe.EventType]enums.TransactionStatus{
	stripe.EventTypePaymentIntentSucceeded:     enums.TransactionStatusCompleted,
	stripe.EventTypePaymentIntentPaymentFailed: enums.TransactionStatusFailed,
	stripe.EventTypePaymentIntentCanceled:      enums.TransactionStatusCancelled,
	stripe.EventTypePaymentIntentProcessing:    enums.TransactionStatusProcessing,
}

// HandleEvent applies a verified event. Unsupported types are acknowledged
// and ignored.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": eventType})

	if status, ok := intentStatusByEvent[event.Type]; ok {
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			s.metrics.IncWebhookEvent(eventType, "error")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		outcome, err := s.payments.ApplyGatewayStatus(ctx, intent.ID, status, failureReason(&intent))
		if err != nil {
			s.metrics.IncWebhookEvent(eventType, "error")
			return err
		}
		if outcome == payments.OutcomeUnknownIntent {
			s.logg.Warn(ctx, "payment intent not found locally; leaving it to the reconciler")
		}
		s.metrics.IncWebhookEvent(eventType, string(outcome))
		return nil
	}

	if event.Type == stripe.EventTypeCheckoutSessionCompleted {
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			s.metrics.IncWebhookEvent(eventType, "error")
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
		}
		if session.PaymentIntent == nil || session.PaymentIntent.ID == "" {
			s.metrics.IncWebhookEvent(eventType, "ignored")
			return nil
		}
		recorded, err := s.payments.RecordSession(ctx, session.PaymentIntent.ID, session.ID)
		if err != nil {
			s.metrics.IncWebhookEvent(eventType, "error")
			return err
		}
		outcome := string(payments.OutcomeApplied)
		if !recorded {
			outcome = string(payments.OutcomeUnknownIntent)
		}
		s.metrics.IncWebhookEvent(eventType, outcome)
		return nil
	}

	s.metrics.IncWebhookEvent(eventType, "ignored")
	return nil
}

func failureReason(intent *stripe.PaymentIntent) *string {
	if intent == nil || intent.LastPaymentError == nil {
		return nil
	}
	reason := strings.TrimSpace(intent.LastPaymentError.Msg)
	if reason == "" {
		reason = string(intent.LastPaymentError.Code)
	}
	if reason == "" {
		return nil
	}
	return &reason
}
