package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/medreminder/internal/metrics"
	"github.com/hitoshi/medreminder/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通確認する依存のインターフェース。
// *sql.DB が実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	h := NewAuthHandler(service, config)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})

	return r
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 薬管理
	MedicationService MedicationServiceInterface

	// スケジュール・服薬確認
	ScheduleService ScheduleServiceInterface

	// 服用忘れスイープ
	Sweeper SweeperInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → CORS →
//	SessionMiddleware → RateLimitMiddleware(General) → CSRF
//
// 認証ルート（/auth/*）、ヘルスチェック、CSRFトークン取得は
// セッションミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	medHandler := NewMedicationHandler(deps.MedicationService)
	scheduleHandler := NewScheduleHandler(deps.ScheduleService)
	sweepHandler := NewSweepHandler(deps.Sweeper)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// 薬管理
		r.Route("/api/medications", func(r chi.Router) {
			r.Get("/", medHandler.ListMedications)

			// 更新系操作には専用レート制限を追加
			r.With(deps.RateLimiter.MutationMiddleware()).Post("/", medHandler.AddMedication)
			r.With(deps.RateLimiter.MutationMiddleware()).Delete("/{id}", medHandler.DeleteMedication)
		})

		// スケジュール
		r.Get("/api/schedule", scheduleHandler.GetSchedule)

		// 服薬確認
		r.With(deps.RateLimiter.MutationMiddleware()).Post("/api/doses/{id}/confirm", scheduleHandler.ConfirmDose)

		// 服用忘れスイープ（即時実行）
		r.Post("/api/sweep", sweepHandler.RunSweep)
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
