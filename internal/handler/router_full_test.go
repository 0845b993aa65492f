package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/medreminder/internal/middleware"
	"github.com/hitoshi/medreminder/internal/model"
	"github.com/hitoshi/medreminder/internal/repository"
)

// mockSessionFinderForRouter はRouter統合テスト用のSessionFinderモック。
type mockSessionFinderForRouter struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinderForRouter) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, nil
}

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
func createTestRouter() http.Handler {
	sessionFinder := &mockSessionFinderForRouter{
		sessions: map[string]*model.Session{
			"valid-session": {
				ID:        "valid-session",
				UserID:    "user-test-1",
				ExpiresAt: time.Now().Add(1 * time.Hour),
			},
		},
	}

	deps := &RouterDeps{
		SessionFinder: sessionFinder,
		CSRFConfig:    middleware.CSRFConfig{CookieSecure: false},
		RateLimiter:   middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
		AuthService:   &mockAuthService{},
		AuthConfig:    AuthHandlerConfig{SessionMaxAge: 86400},
		MedicationService: &mockMedicationService{
			listMedicationsFn: func(ctx context.Context, userID string) ([]*model.Medication, error) {
				return []*model.Medication{
					{ID: "med-1", UserID: userID, Name: "Aspirin", Dosage: "100mg", TimeToTake: "08:00:00"},
				}, nil
			},
		},
		ScheduleService: &mockScheduleService{
			getScheduleFn: func(ctx context.Context, userID string, now time.Time) ([]repository.ScheduleEntry, error) {
				return []repository.ScheduleEntry{}, nil
			},
		},
		Sweeper: &mockSweeperService{},
	}

	return NewRouter(deps)
}

// TestNewRouter_HealthEndpoint はヘルスチェックが認証不要で200を返すことを検証する。
func TestNewRouter_HealthEndpoint(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
}

// TestNewRouter_CSRFTokenEndpoint_NoAuthRequired は
// CSRFトークン取得エンドポイントが認証不要であることを検証する。
func TestNewRouter_CSRFTokenEndpoint_NoAuthRequired(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/csrf-token status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body["token"] == "" {
		t.Error("expected non-empty CSRF token")
	}
}

// TestNewRouter_AuthRoutes_RegisterEndpoint は登録ルートが正しく設定されていることを検証する。
func TestNewRouter_AuthRoutes_RegisterEndpoint(t *testing.T) {
	router := createTestRouter()

	body := `{"name":"Taro","email":"taro@example.com","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("POST /auth/register status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}
}

// TestNewRouter_AuthRoutes_LoginEndpoint はログインルートが正しく設定されていることを検証する。
func TestNewRouter_AuthRoutes_LoginEndpoint(t *testing.T) {
	router := createTestRouter()

	body := `{"name":"Taro","password":"secret123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("POST /auth/login status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_AuthRoutes_MeEndpoint はGET /auth/meが正しくルーティングされることを検証する。
func TestNewRouter_AuthRoutes_MeEndpoint(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /auth/me status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_ProtectedRoute_NoSession_Returns401 は
// 認証保護ルートにセッションなしでアクセスすると401が返ることを検証する。
func TestNewRouter_ProtectedRoute_NoSession_Returns401(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/medications", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /api/medications (no session) status = %d, want %d",
			w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestNewRouter_ProtectedRoute_WithSession_GET_Succeeds は
// 認証保護ルートにセッション付きGETリクエストが成功することを検証する。
func TestNewRouter_ProtectedRoute_WithSession_GET_Succeeds(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/medications", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/medications status = %d, want %d",
			w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_ProtectedRoute_POST_RequiresCSRF は
// POSTリクエストにCSRFトークンが必須であることを検証する。
func TestNewRouter_ProtectedRoute_POST_RequiresCSRF(t *testing.T) {
	router := createTestRouter()

	body := `{"name":"Aspirin","dosage":"100mg","time_to_take":"08:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/medications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("POST /api/medications (no CSRF) status = %d, want %d",
			w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestNewRouter_ProtectedRoute_POST_WithCSRF_Succeeds は
// POSTリクエストにCSRFトークン付きでアクセスが成功することを検証する。
func TestNewRouter_ProtectedRoute_POST_WithCSRF_Succeeds(t *testing.T) {
	router := createTestRouter()

	body := `{"name":"Aspirin","dosage":"100mg","time_to_take":"08:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/medications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("POST /api/medications (with CSRF) status = %d, want %d",
			w.Result().StatusCode, http.StatusCreated)
	}
}

// TestNewRouter_MiddlewareOrder_SessionBeforeCSRF は
// セッション検証がCSRF検証より先に実行されることを検証する。
func TestNewRouter_MiddlewareOrder_SessionBeforeCSRF(t *testing.T) {
	router := createTestRouter()

	body := `{"name":"Aspirin"}`
	req := httptest.NewRequest(http.MethodPost, "/api/medications", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("POST (no session, no CSRF) status = %d, want %d (session check before CSRF)",
			w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestNewRouter_APIRoutes_AllEndpoints はAPI関連の全エンドポイントが登録されていることを検証する。
func TestNewRouter_APIRoutes_AllEndpoints(t *testing.T) {
	router := createTestRouter()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/medications", ""},
		{http.MethodPost, "/api/medications", `{"name":"Aspirin","dosage":"100mg","time_to_take":"08:00"}`},
		{http.MethodDelete, "/api/medications/med-1", ""},
		{http.MethodGet, "/api/schedule", ""},
		{http.MethodPost, "/api/doses/dose-1/confirm", ""},
		{http.MethodPost, "/api/sweep", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
			req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
			req.Header.Set("X-CSRF-Token", "test-token")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode == http.StatusNotFound {
				t.Errorf("%s %s returned 404, route not found", tt.method, tt.path)
			}
		})
	}
}
