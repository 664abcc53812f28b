package routes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/cropmarket-backend/internal/crops"
	"github.com/angelmondragon/cropmarket-backend/internal/reviews"
	"github.com/angelmondragon/cropmarket-backend/pkg/auth"
	"github.com/angelmondragon/cropmarket-backend/pkg/config"
	"github.com/angelmondragon/cropmarket-backend/pkg/db/models"
	"github.com/angelmondragon/cropmarket-backend/pkg/enums"
	"github.com/angelmondragon/cropmarket-backend/pkg/logger"
	"github.com/angelmondragon/cropmarket-backend/pkg/pagination"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error {
	return s.err
}

type stubCrops struct {
	crops.Service
	listed int
}

func (s *stubCrops) List(ctx context.Context, filters crops.ListFilters) (pagination.Page[models.Crop], error) {
	s.listed++
	return pagination.Page[models.Crop]{Items: []models.Crop{}}, nil
}

type stubReviews struct{}

func (stubReviews) SummaryForCrop(context.Context, uuid.UUID) (reviews.Summary, error) {
	return reviews.Summary{}, nil
}

func (stubReviews) ListReviewsForCrop(context.Context, uuid.UUID, pagination.Params) (pagination.Page[reviews.Review], error) {
	return pagination.Page[reviews.Review]{}, nil
}

func (stubReviews) SubmitReview(context.Context, reviews.SubmitReviewInput) (*models.PurchaseRequest, error) {
	return nil, errors.New("not implemented")
}

type stubWebhookService struct{}

func (stubWebhookService) HandleEvent(context.Context, *stripe.Event) error {
	return nil
}

type rejectingVerifier struct{}

func (rejectingVerifier) VerifyEvent([]byte, string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("bad signature")
}

type stubGuard struct{}

func (stubGuard) CheckAndMark(context.Context, string) (bool, error) { return true, nil }
func (stubGuard) Delete(context.Context, string) error              { return nil }

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "cropmarket", ExpirationMinutes: 10},
		Stripe: config.StripeConfig{
			WebhookRPS:   100,
			WebhookBurst: 100,
		},
	}
}

func newTestRouter(t *testing.T, db stubPinger, cropSvc *stubCrops, metricsHandler http.Handler) http.Handler {
	t.Helper()
	return NewRouter(
		testConfig(),
		logger.Nop(),
		db,
		nil,
		Services{
			Crops:         cropSvc,
			Reviews:       stubReviews{},
			StripeWebhook: stubWebhookService{},
		},
		rejectingVerifier{},
		stubGuard{},
		metricsHandler,
	)
}

func bearer(t *testing.T, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(testConfig().JWT, time.Now(), auth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    uuid.NewString(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, stubPinger{}, &stubCrops{}, nil)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d body=%s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestReadyReportsFailingDatabase(t *testing.T) {
	router := newTestRouter(t, stubPinger{err: errors.New("down")}, &stubCrops{}, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	cropSvc := &stubCrops{}
	router := newTestRouter(t, stubPinger{}, cropSvc, nil)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/crops", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if cropSvc.listed != 0 {
		t.Fatalf("service should not be reached without a token")
	}
}

func TestCropListOpenToAnyRole(t *testing.T) {
	cropSvc := &stubCrops{}
	router := newTestRouter(t, stubPinger{}, cropSvc, nil)

	for _, role := range []enums.Role{enums.RoleDealer, enums.RoleFarmer, enums.RoleAdmin} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/crops", nil)
		req.Header.Set("Authorization", bearer(t, role))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d body=%s", role, resp.Code, resp.Body.String())
		}
	}
	if cropSvc.listed != 3 {
		t.Fatalf("expected 3 list calls, got %d", cropSvc.listed)
	}
}

func TestRoleGatedRoutes(t *testing.T) {
	router := newTestRouter(t, stubPinger{}, &stubCrops{}, nil)
	purchaseID := uuid.NewString()

	cases := []struct {
		name   string
		method string
		path   string
		role   enums.Role
	}{
		{name: "dealer cannot create crop", method: http.MethodPost, path: "/api/v1/crops", role: enums.RoleDealer},
		{name: "farmer cannot request purchase", method: http.MethodPost, path: "/api/v1/purchases", role: enums.RoleFarmer},
		{name: "dealer cannot confirm", method: http.MethodPost, path: "/api/v1/purchases/" + purchaseID + "/confirm", role: enums.RoleDealer},
		{name: "farmer cannot pay", method: http.MethodPost, path: "/api/v1/purchases/" + purchaseID + "/payment-intent", role: enums.RoleFarmer},
		{name: "farmer cannot review", method: http.MethodPost, path: "/api/v1/purchases/" + purchaseID + "/review", role: enums.RoleFarmer},
		{name: "admin cannot list purchases", method: http.MethodGet, path: "/api/v1/purchases", role: enums.RoleAdmin},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`))
			req.Header.Set("Authorization", bearer(t, tc.role))
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code != http.StatusForbidden {
				t.Fatalf("expected 403 got %d body=%s", resp.Code, resp.Body.String())
			}
		})
	}
}

func TestStripeWebhookIsPublicAndVerified(t *testing.T) {
	router := newTestRouter(t, stubPinger{}, &stubCrops{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad signature got %d", resp.Code)
	}
}

func TestMetricsMountedWhenProvided(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	router := newTestRouter(t, stubPinger{}, &stubCrops{}, metrics)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != "# metrics" {
		t.Fatalf("unexpected metrics response %d %q", resp.Code, resp.Body.String())
	}

	bare := newTestRouter(t, stubPinger{}, &stubCrops{}, nil)
	resp = httptest.NewRecorder()
	bare.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a metrics handler got %d", resp.Code)
	}
}
