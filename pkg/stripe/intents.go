package stripe

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

// Intent is the gateway view of a payment intent, already mapped onto the
// local transaction status.
type Intent struct {
	ID            string
	ClientSecret  string
	AmountCents   int64
	Currency      string
	Status        enums.TransactionStatus
	FailureReason *string
}

type (
	createIntentFunc func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getIntentFunc    func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	cancelIntentFunc func(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
)

// Cancellation reasons Stripe accepts for intents voided by this service.
const (
	CancelReasonDuplicate = "duplicate"
	CancelReasonAbandoned = "abandoned"
)

// PaymentIntents creates and reads Stripe PaymentIntents.
type PaymentIntents struct {
	create createIntentFunc
	get    getIntentFunc
	cancel cancelIntentFunc
}

// NewPaymentIntents requires an initialized client so stripe.Key is set.
func NewPaymentIntents(client *Client) (*PaymentIntents, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return &PaymentIntents{create: paymentintent.New, get: paymentintent.Get, cancel: paymentintent.Cancel}, nil
}

// CreateIntent opens a PaymentIntent for amountCents in currency.
func (p *PaymentIntents) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*Intent, error) {
	if amountCents <= 0 {
		return nil, errors.New("amount must be positive")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		return nil, errors.New("currency required")
	}
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountCents),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := p.create(params)
	if err != nil {
		return nil, err
	}
	return ToIntent(pi), nil
}

// GetIntent fetches the current state of a PaymentIntent.
func (p *PaymentIntents) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return nil, errors.New("intent id required")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.get(intentID, params)
	if err != nil {
		return nil, err
	}
	return ToIntent(pi), nil
}

// CancelIntent voids an intent that will never be paid. reason is passed to
// Stripe as the cancellation_reason when set.
func (p *PaymentIntents) CancelIntent(ctx context.Context, intentID, reason string) error {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return errors.New("intent id required")
	}
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	if reason != "" {
		params.CancellationReason = stripe.String(reason)
	}
	_, err := p.cancel(intentID, params)
	return err
}

// ToIntent maps a Stripe PaymentIntent onto Intent.
func ToIntent(pi *stripe.PaymentIntent) *Intent {
	if pi == nil {
		return nil
	}
	intent := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       MapIntentStatus(pi),
	}
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		msg := pi.LastPaymentError.Msg
		intent.FailureReason = &msg
	}
	return intent
}

// MapIntentStatus translates Stripe's intent status. An intent sent back to
// requires_payment_method after an attempt counts as failed.
func MapIntentStatus(pi *stripe.PaymentIntent) enums.TransactionStatus {
	if pi == nil {
		return enums.TransactionStatusPending
	}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return enums.TransactionStatusCompleted
	case stripe.PaymentIntentStatusProcessing:
		return enums.TransactionStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return enums.TransactionStatusCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return enums.TransactionStatusFailed
		}
		return enums.TransactionStatusPending
	default:
		return enums.TransactionStatusPending
	}
}
