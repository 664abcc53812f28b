package notifications

import (
	"context"
	"time"

	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Service is the read side of a user's notification inbox. Notifications are
// only ever written by the consumer.
type Service interface {
	List(ctx context.Context, params ListParams) (pagination.Page[models.Notification], error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

var errNoUser = pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")

func (s *service) List(ctx context.Context, params ListParams) (pagination.Page[models.Notification], error) {
	var empty pagination.Page[models.Notification]
	if params.UserID == uuid.Nil {
		return empty, errNoUser
	}

	cursor, err := parseCursor(params.Cursor)
	if err != nil {
		return empty, err
	}
	rows, err := s.repo.List(ctx, listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		Cursor:     cursor,
		UnreadOnly: params.UnreadOnly,
	})
	if err != nil {
		return empty, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	return pagination.Build(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	}), nil
}

func parseCursor(raw string) (*pagination.Cursor, error) {
	if raw == "" {
		return nil, nil
	}
	cursor, err := pagination.ParseCursor(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return cursor, nil
}

// MarkRead is idempotent: marking an already-read notification succeeds.
func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	switch {
	case userID == uuid.Nil:
		return errNoUser
	case notificationID == uuid.Nil:
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	outcome, err := s.repo.MarkRead(ctx, userID, notificationID, s.now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if outcome == readNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, errNoUser
	}
	updated, err := s.repo.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return updated, nil
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, errNoUser
	}
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count unread notifications")
	}
	return count, nil
}
