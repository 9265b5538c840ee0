package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"rideledger/internal/app"
	"rideledger/internal/domain"
	"rideledger/internal/handler"
	"rideledger/internal/middleware"
	"rideledger/internal/service"
)

const webhookSecret = "webhook-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// testServer is the full router wired over the mocks.
type testServer struct {
	*fixture
	auth      *service.AuthService
	responses *MockResponseCache
	router    *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	f := newFixture(t)
	logger := NewTestLogger()
	auth := service.NewAuthService(NewMockUserRepository(), f.store.DriverRepo, NewMockAdminRepository(), "test-secret", time.Hour, logger)
	responses := NewMockResponseCache()

	router := app.NewRouter(app.RouterDeps{
		UserHandler:     handler.NewUserHandler(auth),
		DriverHandler:   handler.NewDriverHandler(f.drivers, auth),
		AdminHandler:    handler.NewAdminHandler(auth, service.NewAnalyticsService(f.store)),
		RideHandler:     handler.NewRideHandler(f.rides),
		PaymentHandler:  handler.NewPaymentHandler(f.ledger, f.payouts),
		SettingsHandler: handler.NewSettingsHandler(f.settings),
		Tokens:          auth,
		Drivers:         f.drivers,
		Responses:       responses,
		WebhookSecret:   webhookSecret,
		AllowedOrigins:  "*",
		Logger:          logger,
	})

	return &testServer{fixture: f, auth: auth, responses: responses, router: router}
}

func (s *testServer) token(t *testing.T, id string, role domain.Role) string {
	t.Helper()
	token, err := s.auth.IssueToken(id, role)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPI_Health(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	if w := s.do(t, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestAPI_AuthenticationAndRoles(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)
	s.addDriver("driver-2", domain.DriverStatusSuspended, domain.PlanTypeCommission)

	testCases := []struct {
		name     string
		method   string
		path     string
		token    string
		wantCode int
	}{
		{"no token", http.MethodGet, "/v1/rides", "", http.StatusUnauthorized},
		{"garbage token", http.MethodGet, "/v1/rides", "nope", http.StatusUnauthorized},
		{"user on driver route", http.MethodGet, "/v1/drivers/me", s.token(t, "user-1", domain.RoleUser), http.StatusForbidden},
		{"driver on admin route", http.MethodGet, "/v1/admin/drivers", s.token(t, "driver-1", domain.RoleDriver), http.StatusForbidden},
		{"suspended driver", http.MethodGet, "/v1/drivers/me", s.token(t, "driver-2", domain.RoleDriver), http.StatusForbidden},
		{"deleted driver", http.MethodGet, "/v1/drivers/me", s.token(t, "driver-9", domain.RoleDriver), http.StatusUnauthorized},
		{"active driver", http.MethodGet, "/v1/drivers/me", s.token(t, "driver-1", domain.RoleDriver), http.StatusOK},
		{"admin", http.MethodGet, "/v1/admin/drivers", s.token(t, "admin-1", domain.RoleAdmin), http.StatusOK},
	}

	for _, tc := range testCases {
		w := s.do(t, tc.method, tc.path, tc.token, nil)
		if w.Code != tc.wantCode {
			t.Errorf("%s: expected %d, got %d (%s)", tc.name, tc.wantCode, w.Code, w.Body.String())
		}
	}
}

func TestAPI_ErrorMapping(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)
	s.addDriver("pending-1", domain.DriverStatusPending, domain.PlanTypeCommission)
	s.addRide("ride-1", "user-1", "", domain.RideStatusRequested)
	admin := s.token(t, "admin-1", domain.RoleAdmin)
	driver := s.token(t, "driver-1", domain.RoleDriver)
	user := s.token(t, "user-2", domain.RoleUser)

	testCases := []struct {
		name     string
		method   string
		path     string
		token    string
		body     any
		wantCode int
	}{
		{"unknown driver", http.MethodGet, "/v1/admin/drivers/missing", admin, nil, http.StatusNotFound},
		{"approve twice", http.MethodPatch, "/v1/admin/drivers/driver-1/approve", admin, nil, http.StatusConflict},
		{"bad plan", http.MethodPatch, "/v1/drivers/me/plan", driver, gin.H{"planType": "gold"}, http.StatusBadRequest},
		{"not a participant", http.MethodGet, "/v1/rides/ride-1", user, nil, http.StatusForbidden},
		{"start before accept", http.MethodPost, "/v1/rides/ride-1/start", driver, nil, http.StatusForbidden},
		{"bad status filter", http.MethodGet, "/v1/admin/rides?status=flying", admin, nil, http.StatusBadRequest},
		{"reversed history range", http.MethodGet, "/v1/payments/history?startDate=2025-03-10&endDate=2025-03-01", driver, nil, http.StatusBadRequest},
		{"bad history date", http.MethodGet, "/v1/payments/history?startDate=yesterday", driver, nil, http.StatusBadRequest},
		{"missing ride fields", http.MethodPost, "/v1/rides", s.token(t, "user-1", domain.RoleUser), gin.H{"origin": "A"}, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		w := s.do(t, tc.method, tc.path, tc.token, tc.body)
		if w.Code != tc.wantCode {
			t.Errorf("%s: expected %d, got %d (%s)", tc.name, tc.wantCode, w.Code, w.Body.String())
		}
		if w.Code >= 400 {
			if resp := decode[handler.ErrorResponse](t, w); resp.Error == "" {
				t.Errorf("%s: expected error message", tc.name)
			}
		}
	}
}

func TestAPI_FareEstimate(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/v1/fares/estimate?distanceMeters=5000&durationSeconds=600", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	quote := decode[handler.FareQuoteResponse](t, w)
	if !approxEqual(quote.Amount, 90) {
		t.Errorf("expected 90, got %v", quote.Amount)
	}

	if w := s.do(t, http.MethodGet, "/v1/fares/estimate?distanceMeters=far", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for non-numeric input, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/v1/fares/estimate?distanceMeters=-1", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative input, got %d", w.Code)
	}
}

func TestAPI_UpdateSettingsIsPartial(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	admin := s.token(t, "admin-1", domain.RoleAdmin)

	w := s.do(t, http.MethodPut, "/v1/admin/settings", admin, gin.H{"commissionRate": 0.2})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	w = s.do(t, http.MethodGet, "/v1/settings", "", nil)
	settings := decode[handler.SettingsBody](t, w)
	if !approxEqual(settings.CommissionRate, 0.2) {
		t.Errorf("expected commission rate 0.2, got %v", settings.CommissionRate)
	}
	if !approxEqual(settings.SubscriptionFee.Monthly, 200) || !approxEqual(settings.MinFare, 50) {
		t.Errorf("expected untouched fields to keep defaults, got %+v", settings)
	}
	if s.store.SettingsRepo.ActiveCount() != 1 {
		t.Errorf("expected one active settings record, got %d", s.store.SettingsRepo.ActiveCount())
	}

	if w := s.do(t, http.MethodPut, "/v1/admin/settings", admin, gin.H{"commissionRate": 1.5}); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for out of range rate, got %d", w.Code)
	}
}

func TestAPI_RideToPayout(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)
	user := s.token(t, "user-1", domain.RoleUser)
	driver := s.token(t, "driver-1", domain.RoleDriver)
	admin := s.token(t, "admin-1", domain.RoleAdmin)

	w := s.do(t, http.MethodPost, "/v1/rides", user, gin.H{"origin": "Sea Point", "destination": "Observatory"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	ride := decode[handler.RideResponse](t, w)

	for _, step := range []string{"accept", "start"} {
		if w := s.do(t, http.MethodPost, "/v1/rides/"+ride.ID+"/"+step, driver, nil); w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d (%s)", step, w.Code, w.Body.String())
		}
	}

	w = s.do(t, http.MethodPost, "/v1/rides/"+ride.ID+"/complete", driver, gin.H{"distanceMeters": 5000, "durationSeconds": 600})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	completed := decode[handler.CompleteRideResponse](t, w)
	if !approxEqual(completed.Commission.Amount, 13.5) || !approxEqual(completed.Payout.Amount, 76.5) {
		t.Errorf("unexpected ledger entries %v / %v", completed.Commission.Amount, completed.Payout.Amount)
	}

	w = s.do(t, http.MethodPost, "/v1/payments/commission", driver, gin.H{"rideId": ride.ID, "rideFare": 90})
	if w.Code != http.StatusConflict {
		t.Errorf("manual commission for a settled ride: expected 409, got %d", w.Code)
	}

	w = s.do(t, http.MethodPatch, "/v1/admin/payments/process", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("process: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	reports := decode[[]handler.PayoutReportResponse](t, w)
	if len(reports) != 1 || reports[0].DriverID != "driver-1" || !approxEqual(reports[0].TotalPaid, 76.5) {
		t.Errorf("expected one payout of 76.5 for driver-1, got %+v", reports)
	}

	w = s.do(t, http.MethodPatch, "/v1/admin/payments/process", admin, nil)
	if got := strings.TrimSpace(w.Body.String()); w.Code != http.StatusOK || got != "[]" {
		t.Errorf("second run: expected an empty array, got %d %s", w.Code, got)
	}

	w = s.do(t, http.MethodGet, "/v1/admin/analytics", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("analytics: expected 200, got %d", w.Code)
	}
	analytics := decode[handler.AnalyticsResponse](t, w)
	if analytics.CompletedRides != 1 || !approxEqual(analytics.PlatformRevenue, 13.5) {
		t.Errorf("unexpected analytics %+v", analytics)
	}
}

func TestAPI_SubscriptionWebhook(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeSubscription)
	driver := s.token(t, "driver-1", domain.RoleDriver)

	w := s.do(t, http.MethodPost, "/v1/payments/subscribe", driver, gin.H{"paymentMethod": "card"})
	if w.Code != http.StatusCreated {
		t.Fatalf("subscribe: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	sub := decode[handler.SubscribeResponse](t, w)
	if sub.Payment.Status != domain.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", sub.Payment.Status)
	}

	w = s.do(t, http.MethodGet, "/v1/drivers/me/eligibility", driver, nil)
	if e := decode[handler.EligibilityResponse](t, w); e.Eligible {
		t.Error("expected driver to be ineligible before confirmation")
	}

	body, _ := json.Marshal(gin.H{"paymentId": sub.Payment.ID, "status": "completed", "transactionId": "tx-1"})
	sign := func(b []byte) string { return middleware.Sign(webhookSecret, b) }

	if w := s.do(t, http.MethodPost, "/v1/payments/webhook", "", json.RawMessage(body)); w.Code != http.StatusUnauthorized {
		t.Errorf("unsigned webhook: expected 401, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/v1/payments/webhook", "", json.RawMessage(body), "X-Signature", strings.Repeat("0", 64)); w.Code != http.StatusUnauthorized {
		t.Errorf("bad signature: expected 401, got %d", w.Code)
	}

	w = s.do(t, http.MethodPost, "/v1/payments/webhook", "", json.RawMessage(body), "X-Signature", sign(body))
	if w.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	if p := decode[handler.PaymentResponse](t, w); p.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected completed, got %s", p.Status)
	}

	w = s.do(t, http.MethodGet, "/v1/drivers/me/eligibility", driver, nil)
	if e := decode[handler.EligibilityResponse](t, w); !e.Eligible {
		t.Errorf("expected driver to be eligible after confirmation, got %+v", e)
	}
}

func TestAPI_WebhookDisabledWithoutSecret(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	router := gin.New()
	router.POST("/webhook", middleware.VerifySignature(""), handler.NewPaymentHandler(f.ledger, f.payouts).Webhook)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{}`))
	req.Header.Set("X-Signature", middleware.Sign("", []byte(`{}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}
}

func TestAPI_IdempotentReplay(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	user := s.token(t, "user-1", domain.RoleUser)
	body := gin.H{"origin": "Sea Point", "destination": "Observatory"}

	first := s.do(t, http.MethodPost, "/v1/rides", user, body, "Idempotency-Key", "abc")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", first.Code)
	}
	second := s.do(t, http.MethodPost, "/v1/rides", user, body, "Idempotency-Key", "abc")
	if second.Code != http.StatusCreated || second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Error("expected identical replayed body")
	}

	rides, _ := s.store.RideRepo.List(context.Background(), "")
	if len(rides) != 1 {
		t.Errorf("expected one ride, got %d", len(rides))
	}

	other := s.token(t, "user-2", domain.RoleUser)
	if w := s.do(t, http.MethodPost, "/v1/rides", other, body, "Idempotency-Key", "abc"); w.Header().Get("Idempotent-Replayed") != "" {
		t.Error("expected keys to be scoped per caller")
	}
}

func TestAPI_CORSPreflight(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	w := s.do(t, http.MethodOptions, "/v1/rides", "", nil, "Origin", "https://app.example.com")
	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
}
