package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/internal/crops"
	"github.com/angelmondragon/cropmarket-backend/internal/purchases"
	dbpkg "github.com/angelmondragon/cropmarket-backend/pkg/db"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
	"github.com/angelmondragon/cropmarket-backend/pkg/money"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/payloads"
	pkgstripe "github.com/angelmondragon/cropmarket-backend/pkg/stripe"
)

const defaultGatewayTimeout = 10 * time.Second

var (
	ErrPaymentNotFound      = pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	ErrPurchaseNotConfirmed = pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonNotConfirmed, "purchase is not confirmed")
	ErrGatewayUnavailable   = pkgerrors.NewReason(pkgerrors.CodeDependency, pkgerrors.ReasonGatewayUnavailable, "payment gateway unavailable")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// TransitionOutcome reports what a gateway status update did locally.
type TransitionOutcome string

const (
	OutcomeApplied       TransitionOutcome = "applied"
	OutcomeStale         TransitionOutcome = "stale"
	OutcomeUnknownIntent TransitionOutcome = "unknown_intent"
)

// IntentResult is what the dealer's client needs to complete the payment.
type IntentResult struct {
	PaymentID    uuid.UUID
	ClientSecret string
	AmountCents  int64
	Currency     string
}

// Service creates payment intents and applies gateway status updates.
type Service interface {
	CreatePaymentIntent(ctx context.Context, purchaseID, dealerID uuid.UUID) (*IntentResult, error)
	ApplyGatewayStatus(ctx context.Context, intentID string, status enums.TransactionStatus, failureReason *string) (TransitionOutcome, error)
	RecordSession(ctx context.Context, intentID, sessionID string) (bool, error)
	GetForPurchase(ctx context.Context, purchaseID, userID uuid.UUID) (*models.Payment, error)
	ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// ServiceParams groups the payment service dependencies.
type ServiceParams struct {
	Repo           Repository
	Purchases      purchases.Repository
	Crops          crops.Repository
	Tx             txRunner
	Outbox         outboxPublisher
	Gateway        Gateway
	Logger         *logger.Logger
	Metrics        *metrics.LifecycleMetrics
	Currency       string
	GatewayTimeout time.Duration
}

type service struct {
	repo      Repository
	purchases purchases.Repository
	crops     crops.Repository
	tx        txRunner
	outbox    outboxPublisher
	gateway   Gateway
	logg      *logger.Logger
	metrics   *metrics.LifecycleMetrics
	currency  string
	timeout   time.Duration
	now       func() time.Time
}

// NewService builds the payment service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if params.Crops == nil {
		return nil, fmt.Errorf("crops repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = "usd"
	}
	timeout := params.GatewayTimeout
	if timeout <= 0 {
		timeout = defaultGatewayTimeout
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:      params.Repo,
		purchases: params.Purchases,
		crops:     params.Crops,
		tx:        params.Tx,
		outbox:    params.Outbox,
		gateway:   params.Gateway,
		logg:      logg,
		metrics:   params.Metrics,
		currency:  currency,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// CreatePaymentIntent opens a gateway intent for a confirmed purchase. The
// gateway call runs outside any transaction and under a bounded timeout; if
// it fails nothing is persisted.
func (s *service) CreatePaymentIntent(ctx context.Context, purchaseID, dealerID uuid.UUID) (*IntentResult, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if dealerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	purchase, err := s.loadPayablePurchase(ctx, s.purchases, s.repo, purchaseID, dealerID)
	if err != nil {
		return nil, err
	}
	amount, err := s.amountFor(ctx, purchase)
	if err != nil {
		return nil, err
	}

	intent, err := s.createIntent(ctx, purchase, amount)
	if err != nil {
		return nil, err
	}

	var (
		payment    *models.Payment
		superseded string
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.loadPayablePurchase(ctx, s.purchases.WithTx(tx), repo, purchaseID, dealerID); err != nil {
			return err
		}

		existing, err := repo.FindByPurchaseID(ctx, purchase.ID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			payment = &models.Payment{
				PurchaseID:        purchase.ID,
				FarmerID:          purchase.FarmerID,
				DealerID:          purchase.DealerID,
				CropID:            purchase.CropID,
				AmountCents:       int64(amount),
				Currency:          s.currency,
				TransactionStatus: enums.TransactionStatusPending,
				ExternalIntentID:  intent.ID,
			}
			if err := repo.Create(ctx, payment); err != nil {
				if dbpkg.IsUniqueViolation(err, "") {
					return purchases.ErrPaymentAlreadyExists
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		default:
			// a cancelled intent is already closed on the gateway
			superseded = ""
			if existing.TransactionStatus == enums.TransactionStatusFailed {
				superseded = existing.ExternalIntentID
			}
			ok, err := repo.ReplaceAttempt(ctx, existing.ID, int64(amount), s.currency, intent.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace payment attempt")
			}
			if !ok {
				return purchases.ErrPaymentAlreadyExists
			}
			if payment, err = repo.FindByPurchaseID(ctx, purchase.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
			}
		}

		return s.emitStatus(ctx, tx, enums.EventPaymentInitiated, payment, &outbox.ActorRef{UserID: dealerID, Role: enums.RoleDealer})
	})
	if err != nil {
		s.cancelIntent(ctx, purchase.ID, intent.ID, pkgstripe.CancelReasonDuplicate)
		return nil, err
	}
	if superseded != "" {
		s.cancelIntent(ctx, purchase.ID, superseded, pkgstripe.CancelReasonAbandoned)
	}

	return &IntentResult{
		PaymentID:    payment.ID,
		ClientSecret: intent.ClientSecret,
		AmountCents:  payment.AmountCents,
		Currency:     payment.Currency,
	}, nil
}

func (s *service) loadPayablePurchase(ctx context.Context, purchaseRepo purchases.Repository, repo Repository, purchaseID, dealerID uuid.UUID) (*models.PurchaseRequest, error) {
	purchase, err := purchaseRepo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, purchases.ErrPurchaseNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase.DealerID != dealerID {
		return nil, purchases.ErrPurchaseNotOwned
	}
	if !purchase.IsConfirmed {
		return nil, ErrPurchaseNotConfirmed
	}
	existing, err := repo.FindByPurchaseID(ctx, purchaseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if existing != nil && !existing.TransactionStatus.IsReplaceable() {
		return nil, purchases.ErrPaymentAlreadyExists
	}
	return purchase, nil
}

// amountFor prices the purchase at the crop's current price. A delisted crop
// falls back to the price captured at confirmation.
func (s *service) amountFor(ctx context.Context, purchase *models.PurchaseRequest) (money.Cents, error) {
	unitPrice := int64(0)
	crop, err := s.crops.FindByID(ctx, purchase.CropID)
	switch {
	case err == nil:
		unitPrice = crop.PricePerUnitCents
	case errors.Is(err, gorm.ErrRecordNotFound) && purchase.UnitPriceCentsAtConfirmation != nil:
		unitPrice = *purchase.UnitPriceCentsAtConfirmation
	case errors.Is(err, gorm.ErrRecordNotFound):
		return 0, crops.ErrCropNotFound
	default:
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crop")
	}
	amount, err := money.Multiply(unitPrice, purchase.QuantityRequested)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment amount")
	}
	if amount <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	return amount, nil
}

func (s *service) createIntent(ctx context.Context, purchase *models.PurchaseRequest, amount money.Cents) (*pkgstripe.Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	intent, err := s.gateway.CreateIntent(callCtx, int64(amount), s.currency, map[string]string{
		"purchase_id": purchase.ID.String(),
		"dealer_id":   purchase.DealerID.String(),
		"farmer_id":   purchase.FarmerID.String(),
		"crop_id":     purchase.CropID.String(),
	})
	s.metrics.ObserveGateway("create_intent", err, time.Since(started))
	if err != nil {
		s.logg.Error(s.logg.WithPurchaseID(ctx, purchase.ID.String()), "create payment intent failed", err)
		return nil, ErrGatewayUnavailable.WithCause(err)
	}
	if intent == nil || strings.TrimSpace(intent.ID) == "" {
		return nil, ErrGatewayUnavailable.WithDetails(map[string]string{"reason": "gateway returned no intent id"})
	}
	return intent, nil
}

// cancelIntent voids a gateway intent that no payment row points at. It runs
// after the request's own work is settled, so failures are only logged.
func (s *service) cancelIntent(ctx context.Context, purchaseID uuid.UUID, intentID, reason string) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	started := time.Now()
	err := s.gateway.CancelIntent(callCtx, intentID, reason)
	s.metrics.ObserveGateway("cancel_intent", err, time.Since(started))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"purchase_id": purchaseID.String(),
		"intent_id":   intentID,
		"reason":      reason,
	})
	if err != nil {
		s.logg.Error(logCtx, "unrecorded payment intent left open", err)
		return
	}
	s.logg.Info(logCtx, "unrecorded payment intent cancelled")
}

// ApplyGatewayStatus moves the payment for intentID forward. Updates that do
// not advance the status, including replays, change nothing and emit nothing.
func (s *service) ApplyGatewayStatus(ctx context.Context, intentID string, status enums.TransactionStatus, failureReason *string) (TransitionOutcome, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}
	if !status.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction status")
	}
	if status != enums.TransactionStatusFailed {
		failureReason = nil
	}

	outcome := OutcomeStale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByIntentID(ctx, intentID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				outcome = OutcomeUnknownIntent
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		applied, err := repo.TransitionByIntent(ctx, intentID, status, failureReason, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		if !applied {
			return nil
		}
		outcome = OutcomeApplied

		eventType, ok := eventForStatus(status)
		if !ok {
			return nil
		}
		payment, err := repo.FindByIntentID(ctx, intentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
		}
		return s.emitStatus(ctx, tx, eventType, payment, nil)
	})
	if err != nil {
		return "", err
	}
	return outcome, nil
}

func (s *service) RecordSession(ctx context.Context, intentID, sessionID string) (bool, error) {
	intentID = strings.TrimSpace(intentID)
	sessionID = strings.TrimSpace(sessionID)
	if intentID == "" || sessionID == "" {
		return false, nil
	}
	ok, err := s.repo.SetSessionID(ctx, intentID, sessionID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record checkout session")
	}
	return ok, nil
}

func (s *service) GetForPurchase(ctx context.Context, purchaseID, userID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByPurchaseID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.DealerID != userID && payment.FarmerID != userID {
		return nil, purchases.ErrPurchaseNotOwned
	}
	return payment, nil
}

// ReconcileStale polls the gateway for payments still pending after olderThan
// and applies whatever status it reports. It returns how many rows advanced.
func (s *service) ReconcileStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	rows, err := s.repo.ListStale(ctx, s.now().Add(-olderThan), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale payments")
	}

	var (
		advanced int
		errs     error
	)
	for _, row := range rows {
		if ctx.Err() != nil {
			return advanced, multierr.Append(errs, ctx.Err())
		}
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		started := time.Now()
		intent, err := s.gateway.GetIntent(callCtx, row.ExternalIntentID)
		cancel()
		s.metrics.ObserveGateway("get_intent", err, time.Since(started))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", row.ID, err))
			continue
		}
		outcome, err := s.ApplyGatewayStatus(ctx, row.ExternalIntentID, intent.Status, intent.FailureReason)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", row.ID, err))
			continue
		}
		if outcome == OutcomeApplied {
			advanced++
		}
	}
	return advanced, errs
}

func (s *service) emitStatus(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, payment *models.Payment, actor *outbox.ActorRef) error {
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actor,
		Data: payloads.PaymentStatusEvent{
			PaymentID:        payment.ID,
			PurchaseID:       payment.PurchaseID,
			DealerID:         payment.DealerID,
			FarmerID:         payment.FarmerID,
			AmountCents:      payment.AmountCents,
			Currency:         payment.Currency,
			Status:           payment.TransactionStatus,
			ExternalIntentID: payment.ExternalIntentID,
			FailureReason:    payment.FailureReason,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit "+string(eventType))
	}
	return nil
}

func eventForStatus(status enums.TransactionStatus) (enums.OutboxEventType, bool) {
	switch status {
	case enums.TransactionStatusCompleted:
		return enums.EventPaymentCompleted, true
	case enums.TransactionStatusFailed:
		return enums.EventPaymentFailed, true
	case enums.TransactionStatusCancelled:
		return enums.EventPaymentCancelled, true
	default:
		return "", false
	}
}
