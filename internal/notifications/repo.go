package notifications

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// pruneBatchSize bounds how many rows one retention DELETE touches.
const pruneBatchSize = 500

// Repository is the notification inbox storage.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type listNotificationsParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

// readOutcome is what MarkRead found for a (user, notification) pair.
type readOutcome int

const (
	readNotFound readOutcome = iota
	readMarked
	readAlready
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) inbox(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// List returns up to Limit+1 rows newest first so callers can detect the next page.
func (r *gormRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error) {
	query := r.inbox(ctx, params.UserID)
	if params.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}

	var rows []models.Notification
	err := pagination.Apply(query, "created_at", params.Cursor, params.Limit).Find(&rows).Error
	return rows, err
}

// MarkRead stamps read_at once. Rows owned by another user read as not found.
func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (readOutcome, error) {
	var row models.Notification
	err := r.inbox(ctx, userID).Select("id", "read_at").Where("id = ?", notificationID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return readNotFound, nil
	case err != nil:
		return readNotFound, err
	case row.ReadAt != nil:
		return readAlready, nil
	}

	res := r.inbox(ctx, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return readNotFound, res.Error
	}
	if res.RowsAffected == 0 {
		// a concurrent request marked it first
		return readAlready, nil
	}
	return readMarked, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	res := r.inbox(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

func (r *gormRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.inbox(ctx, userID).Where("read_at IS NULL").Count(&count).Error
	return count, err
}

// DeleteOlderThan prunes notifications created before cutoff, read or not,
// in bounded batches so a large backlog never holds one long lock.
func (r *gormRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch := r.db.Model(&models.Notification{}).
			Select("id").
			Where("created_at < ?", cutoff).
			Limit(pruneBatchSize)
		res := r.db.WithContext(ctx).Where("id IN (?)", batch).Delete(&models.Notification{})
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
		if res.RowsAffected < pruneBatchSize {
			return total, nil
		}
	}
}
