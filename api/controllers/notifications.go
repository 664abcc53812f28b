package controllers

import (
	"net/http"

	"github.com/angelmondragon/cropmarket-backend/api/middleware"
	"github.com/angelmondragon/cropmarket-backend/api/responses"
	"github.com/angelmondragon/cropmarket-backend/api/validators"
	"github.com/angelmondragon/cropmarket-backend/internal/notifications"
	pkgerrors "github.com/angelmondragon/cropmarket-backend/pkg/errors"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/google/uuid"
)

// inboxHandler resolves the caller before fn runs. A non-nil result is
// written as the success payload.
type inboxHandler func(r *http.Request, userID uuid.UUID) (any, error)

func inbox(svc notifications.Service, logg *logger.Logger, fn inboxHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}
		userID, _, ok := middleware.ActorFromContext(ctx)
		if !ok {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing"))
			return
		}

		payload, err := fn(r, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, payload)
	}
}

// ListNotifications pages through the caller's inbox, newest first.
// ?unread_only=true hides notifications already read.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		page, err := validators.ParsePageParams(r)
		if err != nil {
			return nil, err
		}
		unread, err := validators.ParseQueryBool(r, "unread_only")
		if err != nil {
			return nil, err
		}
		return svc.List(r.Context(), notifications.ListParams{
			UserID:     userID,
			Limit:      page.Limit,
			Cursor:     page.Cursor,
			UnreadOnly: unread,
		})
	})
}

func MarkNotificationRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		notificationID, err := validators.ParseUUIDParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := svc.MarkRead(r.Context(), userID, notificationID); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		updated, err := svc.MarkAllRead(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": updated}, nil
	})
}

// CountUnreadNotifications backs the inbox badge.
func CountUnreadNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return inbox(svc, logg, func(r *http.Request, userID uuid.UUID) (any, error) {
		count, err := svc.UnreadCount(r.Context(), userID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"unread": count}, nil
	})
}
