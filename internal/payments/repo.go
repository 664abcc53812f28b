package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
)

// Repository persists the local mirror of gateway payments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.Payment) error
	FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	ReplaceAttempt(ctx context.Context, paymentID uuid.UUID, amountCents int64, currency, intentID string) (bool, error)
	TransitionByIntent(ctx context.Context, intentID string, next enums.TransactionStatus, failureReason *string, at time.Time) (bool, error)
	SetSessionID(ctx context.Context, intentID, sessionID string) (bool, error)
	ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) FindByPurchaseID(ctx context.Context, purchaseID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("external_intent_id = ?", intentID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// ReplaceAttempt reuses a failed or cancelled row for a new intent so the
// purchase keeps a single payment row.
func (r *repository) ReplaceAttempt(ctx context.Context, paymentID uuid.UUID, amountCents int64, currency, intentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND transaction_status IN ?", paymentID, []enums.TransactionStatus{
			enums.TransactionStatusFailed,
			enums.TransactionStatusCancelled,
		}).
		Updates(map[string]any{
			"amount_cents":        amountCents,
			"currency":            currency,
			"transaction_status":  enums.TransactionStatusPending,
			"can_be_reviewed":     false,
			"external_intent_id":  intentID,
			"external_session_id": nil,
			"failure_reason":      nil,
			"transaction_date":    nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// TransitionByIntent moves the payment to next only from a lower-ranked
// status. A replayed or stale event matches no row and returns false.
func (r *repository) TransitionByIntent(ctx context.Context, intentID string, next enums.TransactionStatus, failureReason *string, at time.Time) (bool, error) {
	predecessors := next.Predecessors()
	if len(predecessors) == 0 {
		return false, nil
	}
	updates := map[string]any{
		"transaction_status": next,
		"can_be_reviewed":    next == enums.TransactionStatusCompleted,
	}
	if next.IsTerminal() {
		updates["transaction_date"] = at
	}
	if failureReason != nil {
		updates["failure_reason"] = *failureReason
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("external_intent_id = ? AND transaction_status IN ?", intentID, predecessors).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetSessionID(ctx context.Context, intentID, sessionID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("external_intent_id = ?", intentID).
		Update("external_session_id", sessionID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListStale returns non-terminal payments older than createdBefore, oldest first.
func (r *repository) ListStale(ctx context.Context, createdBefore time.Time, limit int) ([]models.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Payment
	err := r.db.WithContext(ctx).
		Where("transaction_status IN ? AND created_at < ?", []enums.TransactionStatus{
			enums.TransactionStatusPending,
			enums.TransactionStatusProcessing,
		}, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
