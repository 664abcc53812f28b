package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/cropmarket-backend/api/middleware"
	"github.com/angelmondragon/cropmarket-backend/internal/notifications"
	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

type testNotificationsService struct {
	markReadFn    func(ctx context.Context, userID, notificationID uuid.UUID) error
	markAllReadFn func(ctx context.Context, userID uuid.UUID) (int64, error)
	listFn        func(ctx context.Context, params notifications.ListParams) (pagination.Page[models.Notification], error)
	unread        int64
}

func (s *testNotificationsService) List(ctx context.Context, params notifications.ListParams) (pagination.Page[models.Notification], error) {
	if s.listFn != nil {
		return s.listFn(ctx, params)
	}
	return pagination.Page[models.Notification]{}, nil
}

func (s *testNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if s.markReadFn != nil {
		return s.markReadFn(ctx, userID, notificationID)
	}
	return nil
}

func (s *testNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if s.markAllReadFn != nil {
		return s.markAllReadFn(ctx, userID)
	}
	return 0, nil
}

func (s *testNotificationsService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.unread, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func withActor(req *http.Request, userID uuid.UUID, role enums.Role) *http.Request {
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return req.WithContext(ctx)
}

func TestMarkNotificationReadSuccess(t *testing.T) {
	userID := uuid.New()
	notificationID := uuid.New()
	called := false
	svc := &testNotificationsService{
		markReadFn: func(ctx context.Context, uid, nid uuid.UUID) error {
			called = true
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			if nid != notificationID {
				t.Fatalf("unexpected notification %s", nid)
			}
			return nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+notificationID.String()+"/read", nil)
	req = withActor(req, userID, enums.RoleDealer)
	req = addRouteParam(req, "notificationId", notificationID.String())

	resp := httptest.NewRecorder()
	MarkNotificationRead(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if !called {
		t.Fatal("expected service called")
	}
	var envelope struct {
		Data map[string]bool `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !envelope.Data["read"] {
		t.Fatal("response missing read flag")
	}
}

func TestMarkNotificationReadMissingUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/"+uuid.NewString()+"/read", nil)
	req = addRouteParam(req, "notificationId", uuid.NewString())
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestMarkNotificationReadInvalidID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/invalid/read", nil)
	req = withActor(req, uuid.New(), enums.RoleFarmer)
	req = addRouteParam(req, "notificationId", "invalid")
	resp := httptest.NewRecorder()
	MarkNotificationRead(&testNotificationsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMarkAllNotificationsReadSuccess(t *testing.T) {
	userID := uuid.New()
	svc := &testNotificationsService{
		markAllReadFn: func(ctx context.Context, uid uuid.UUID) (int64, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			return 5, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications/read-all", nil)
	req = withActor(req, userID, enums.RoleFarmer)
	resp := httptest.NewRecorder()
	MarkAllNotificationsRead(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]float64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["updated"] != 5 {
		t.Fatalf("expected updated=5 got %v", envelope.Data["updated"])
	}
}

func TestListNotificationsPassesFilters(t *testing.T) {
	userID := uuid.New()
	cursor := pagination.EncodeCursor(pagination.Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	svc := &testNotificationsService{
		listFn: func(ctx context.Context, params notifications.ListParams) (pagination.Page[models.Notification], error) {
			if params.UserID != userID || params.Limit != 10 || !params.UnreadOnly || params.Cursor != cursor {
				t.Fatalf("unexpected params %+v", params)
			}
			return pagination.Page[models.Notification]{
				Items:      []models.Notification{{ID: uuid.New(), UserID: userID, Type: enums.NotificationTypePaymentCompleted}},
				NextCursor: "next",
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications?limit=10&unread_only=true&cursor="+cursor, nil)
	req = withActor(req, userID, enums.RoleDealer)
	resp := httptest.NewRecorder()
	ListNotifications(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data struct {
			Items      []map[string]any `json:"items"`
			NextCursor string           `json:"next_cursor"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Items) != 1 || envelope.Data.NextCursor != "next" {
		t.Fatalf("unexpected page %+v", envelope.Data)
	}
	if envelope.Data.Items[0]["type"] != string(enums.NotificationTypePaymentCompleted) {
		t.Fatalf("unexpected item %+v", envelope.Data.Items[0])
	}
}

func TestCountUnreadNotifications(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil), uuid.New(), enums.RoleDealer)
	resp := httptest.NewRecorder()
	CountUnreadNotifications(&testNotificationsService{unread: 3}, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]int64 `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data["unread"] != 3 {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestInboxHandlersWithoutServiceFail(t *testing.T) {
	req := withActor(httptest.NewRequest(http.MethodGet, "/api/v1/notifications/unread-count", nil), uuid.New(), enums.RoleDealer)
	resp := httptest.NewRecorder()
	CountUnreadNotifications(nil, testLogger())(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	resp := httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}, nil)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("dial tcp: refused")}}, nil)(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
	if resp.Header().Get("X-CropMarket-Env") != "test" {
		t.Fatal("expected env header")
	}
}

func addRouteParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}
