package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/repo/postgres"
	accesssvc "github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/services/access"
)

type accessSubsStub struct{}

func (accessSubsStub) Get(context.Context, int64) (postgres.SubscriptionRecord, error) {
	return postgres.SubscriptionRecord{UserID: 777, IsActive: 1, SubscriptionEnd: "2099-01-01"}, nil
}

func newTestRouter() http.Handler {
	r := chi.NewRouter()
	ApplyMiddlewares(r, zap.NewNop(), []string{"https://dreamcatcher.guru"})
	RegisterRoutes(r, Dependencies{
		AccessService: accesssvc.NewService(accessSubsStub{}, time.UTC, zap.NewNop()),
		Logger:        zap.NewNop(),
	})
	return r
}

func TestHealthzRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestCheckAccessServesGetWithQuery(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pay/check-access?user_id=777", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET check-access must answer 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"active":true`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pay/check-access",
		strings.NewReader(`{"user_id": 777}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("POST check-access must answer 200, got %d", rec.Code)
	}
}

func TestPayRoutesWithoutServicesFailGracefully(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/pay/create-checkout-session",
		strings.NewReader(`{"user_id": 1, "plan_type": "single"}`)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unwired checkout must answer 500, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/pay/check-access", nil)
	req.Header.Set("Origin", "https://dreamcatcher.guru")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dreamcatcher.guru" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
}
