package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/internal/crops"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/metrics"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox"
	"github.com/angelmondragon/cropmarket-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

var (
	ErrPurchaseNotFound     = pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	ErrPurchaseNotOwned     = pkgerrors.NewReason(pkgerrors.CodeForbidden, pkgerrors.ReasonPurchaseNotOwned, "purchase does not belong to user")
	ErrAlreadyConfirmed     = pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonAlreadyConfirmed, "purchase already confirmed")
	ErrInsufficientStock    = pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonInsufficientStock, "not enough stock remaining")
	ErrPaymentAlreadyExists = pkgerrors.NewReason(pkgerrors.CodeStateConflict, pkgerrors.ReasonPaymentAlreadyExists, "purchase already has a payment")
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// Service runs the purchase request lifecycle up to payment.
type Service interface {
	CreateRequest(ctx context.Context, input CreateRequestInput) (*models.PurchaseRequest, error)
	ConfirmAndReserve(ctx context.Context, input ConfirmInput) (*models.PurchaseRequest, error)
	Delete(ctx context.Context, purchaseID, dealerID uuid.UUID) error
	Get(ctx context.Context, purchaseID uuid.UUID, actor Actor) (*models.PurchaseRequest, error)
	ListForDealer(ctx context.Context, dealerID uuid.UUID, params pagination.Params) (pagination.Page[models.PurchaseRequest], error)
	ListForFarmer(ctx context.Context, farmerID uuid.UUID, params pagination.Params) (pagination.Page[models.PurchaseRequest], error)
}

type service struct {
	repo    Repository
	crops   crops.Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.LifecycleMetrics
	now     func() time.Time
}

// ServiceParams groups the purchase service dependencies.
type ServiceParams struct {
	Repo    Repository
	Crops   crops.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.LifecycleMetrics
}

// NewService builds the purchase service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
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
	return &service{
		repo:    params.Repo,
		crops:   params.Crops,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateRequest(ctx context.Context, input CreateRequestInput) (*models.PurchaseRequest, error) {
	if input.DealerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.CropID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crop id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive").
			WithDetails(map[string]string{"quantity": "must be greater than 0"})
	}

	var created *models.PurchaseRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		crop, err := s.crops.WithTx(tx).FindByID(ctx, input.CropID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return crops.ErrCropNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crop")
		}

		purchase := &models.PurchaseRequest{
			CropID:            crop.ID,
			DealerID:          input.DealerID,
			FarmerID:          crop.FarmerID,
			QuantityRequested: input.Quantity,
			RequestedAt:       s.now(),
		}
		if err := s.repo.WithTx(tx).Create(ctx, purchase); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create purchase request")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventPurchaseRequestCreated,
			AggregateType: enums.AggregatePurchaseRequest,
			AggregateID:   purchase.ID,
			Actor:         &outbox.ActorRef{UserID: input.DealerID, Role: enums.RoleDealer},
			Data: payloads.PurchaseRequestCreatedEvent{
				PurchaseID:        purchase.ID,
				CropID:            crop.ID,
				CropName:          crop.Name,
				DealerID:          purchase.DealerID,
				FarmerID:          purchase.FarmerID,
				QuantityRequested: purchase.QuantityRequested,
				RequestedAt:       purchase.RequestedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit purchase request created")
		}
		created = purchase
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ConfirmAndReserve confirms the request and takes the stock in one
// transaction. The crop decrement is a guarded UPDATE so concurrent
// confirmations against the same crop serialize on the row.
func (s *service) ConfirmAndReserve(ctx context.Context, input ConfirmInput) (*models.PurchaseRequest, error) {
	if input.PurchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if input.FarmerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var confirmed *models.PurchaseRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cropRepo := s.crops.WithTx(tx)

		purchase, err := repo.FindByIDForUpdate(ctx, input.PurchaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
		}
		if purchase.FarmerID != input.FarmerID {
			return crops.ErrCropNotOwned
		}
		if purchase.IsConfirmed {
			return ErrAlreadyConfirmed
		}

		crop, err := cropRepo.FindByID(ctx, purchase.CropID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return crops.ErrCropNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load crop")
		}

		reserved, err := cropRepo.Reserve(ctx, crop.ID, purchase.QuantityRequested)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve stock")
		}
		if !reserved {
			return insufficientStock(ctx, cropRepo, crop.ID, purchase.QuantityRequested)
		}

		confirmedAt := s.now()
		ok, err := repo.MarkConfirmed(ctx, purchase.ID, crop.PricePerUnitCents, confirmedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm purchase")
		}
		if !ok {
			return ErrAlreadyConfirmed
		}
		price := crop.PricePerUnitCents
		purchase.IsConfirmed = true
		purchase.ConfirmedAt = &confirmedAt
		purchase.UnitPriceCentsAtConfirmation = &price

		actor := &outbox.ActorRef{UserID: input.FarmerID, Role: enums.RoleFarmer}
		events := []outbox.DomainEvent{{
			EventType:     enums.EventPurchaseConfirmed,
			AggregateType: enums.AggregatePurchaseRequest,
			AggregateID:   purchase.ID,
			Actor:         actor,
			Data: payloads.PurchaseConfirmedEvent{
				PurchaseID:        purchase.ID,
				CropID:            crop.ID,
				CropName:          crop.Name,
				DealerID:          purchase.DealerID,
				FarmerID:          purchase.FarmerID,
				QuantityRequested: purchase.QuantityRequested,
				UnitPriceCents:    price,
				ConfirmedAt:       confirmedAt,
			},
		}}

		after, err := cropRepo.FindByID(ctx, crop.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload crop")
		}
		if after.IsLowStock() {
			events = append(events, outbox.DomainEvent{
				EventType:     enums.EventCropLowStock,
				AggregateType: enums.AggregateCrop,
				AggregateID:   after.ID,
				Actor:         actor,
				Data: payloads.CropLowStockEvent{
					CropID:            after.ID,
					CropName:          after.Name,
					FarmerID:          after.FarmerID,
					RemainingQuantity: after.RemainingQuantity,
					Threshold:         after.LowStockThreshold,
				},
			})
		}
		if err := s.outbox.Emit(ctx, tx, events...); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit confirmation events")
		}

		confirmed = purchase
		return nil
	})
	s.metrics.IncConfirmation(confirmationResult(err))
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

// Delete withdraws a request. Confirmed stock goes back to the crop; once a
// payment exists the request can no longer be withdrawn.
func (s *service) Delete(ctx context.Context, purchaseID, dealerID uuid.UUID) error {
	if purchaseID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if dealerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		purchase, err := repo.FindByIDForUpdate(ctx, purchaseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPurchaseNotFound
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
		}
		if purchase.DealerID != dealerID {
			return ErrPurchaseNotOwned
		}

		hasPayment, err := repo.PaymentExists(ctx, purchase.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check payment")
		}
		if hasPayment {
			return ErrPaymentAlreadyExists
		}

		var restocked int64
		if purchase.IsConfirmed {
			if err := s.crops.WithTx(tx).Release(ctx, purchase.CropID, purchase.QuantityRequested); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restock crop")
			}
			restocked = purchase.QuantityRequested
		}

		if err := repo.SoftDelete(ctx, purchase.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete purchase")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPurchaseDeleted,
			AggregateType: enums.AggregatePurchaseRequest,
			AggregateID:   purchase.ID,
			Actor:         &outbox.ActorRef{UserID: dealerID, Role: enums.RoleDealer},
			Data: payloads.PurchaseDeletedEvent{
				PurchaseID:        purchase.ID,
				CropID:            purchase.CropID,
				DealerID:          purchase.DealerID,
				FarmerID:          purchase.FarmerID,
				WasConfirmed:      purchase.IsConfirmed,
				RestockedQuantity: restocked,
			},
		})
	})
}

func (s *service) Get(ctx context.Context, purchaseID uuid.UUID, actor Actor) (*models.PurchaseRequest, error) {
	if purchaseID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "purchase id required")
	}
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if actor.Role != enums.RoleAdmin && purchase.DealerID != actor.UserID && purchase.FarmerID != actor.UserID {
		return nil, ErrPurchaseNotOwned
	}
	return purchase, nil
}

func (s *service) ListForDealer(ctx context.Context, dealerID uuid.UUID, params pagination.Params) (pagination.Page[models.PurchaseRequest], error) {
	return s.list(ctx, dealerID, params, s.repo.ListByDealer)
}

func (s *service) ListForFarmer(ctx context.Context, farmerID uuid.UUID, params pagination.Params) (pagination.Page[models.PurchaseRequest], error) {
	return s.list(ctx, farmerID, params, s.repo.ListByFarmer)
}

type listFn func(ctx context.Context, id uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.PurchaseRequest, error)

func (s *service) list(ctx context.Context, userID uuid.UUID, params pagination.Params, fetch listFn) (pagination.Page[models.PurchaseRequest], error) {
	if userID == uuid.Nil {
		return pagination.Page[models.PurchaseRequest]{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.PurchaseRequest]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := fetch(ctx, userID, cursor, params.Limit)
	if err != nil {
		return pagination.Page[models.PurchaseRequest]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchases")
	}
	return pagination.Build(rows, params.Limit, func(p models.PurchaseRequest) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.RequestedAt, ID: p.ID}
	}), nil
}

func confirmationResult(err error) string {
	switch {
	case err == nil:
		return "confirmed"
	case errors.Is(err, ErrAlreadyConfirmed):
		return "already_confirmed"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, crops.ErrCropNotOwned):
		return "forbidden"
	default:
		return "error"
	}
}

// insufficientStock reports the stock left after the guarded decrement lost,
// read again because the crop loaded before it may be stale.
func insufficientStock(ctx context.Context, cropRepo crops.Repository, cropID uuid.UUID, requested int64) error {
	details := map[string]any{"requested": requested}
	if current, err := cropRepo.FindByID(ctx, cropID); err == nil {
		details["remaining"] = current.RemainingQuantity
	}
	return ErrInsufficientStock.WithDetails(details)
}
