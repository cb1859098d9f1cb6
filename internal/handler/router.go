package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/panchsetu/internal/metrics"
	"github.com/hitoshi/panchsetu/internal/middleware"
	"github.com/hitoshi/panchsetu/internal/model"
)

// welcomeText は / に返す文言。
const welcomeText = "Welcome to AyurSutra"

// healthCheckTimeout はヘルスチェック時のストア疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// HealthChecker はストアの疎通確認インターフェース。*sql.DBと*database.Mongoが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator      middleware.Authenticator
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	TrustProxyHeaders  bool
	Logger             *slog.Logger
	Metrics            metrics.Recorder

	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	Cookies     CookieConfig

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → OriginGuard
//	  ├─ 登録・ログイン: RateLimit(Auth)
//	  └─ 認証が必要なルート: AuthGate
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if deps.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
	r.Use(middleware.NewOriginGuardMiddleware(deps.CORSAllowedOrigins))

	authHandler := NewAuthHandler(deps.AuthService, deps.Cookies)
	userHandler := NewUserHandler(deps.UserService)
	authGate := middleware.NewAuthMiddleware(deps.Authenticator, deps.Metrics)

	rateLimited := func(r chi.Router) chi.Router {
		if deps.RateLimiter == nil {
			return r
		}
		return r.With(deps.RateLimiter.AuthMiddleware())
	}

	// --- 認証不要のルート ---
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(welcomeText))
	})
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/auth", func(r chi.Router) {
		// 登録・ログインはクライアントIPごとにレート制限する
		rateLimited(r).Post("/patient-register", authHandler.RegisterPatient)
		rateLimited(r).Post("/patient-login", authHandler.LoginPatient)
		rateLimited(r).Post("/practitioner-register", authHandler.RegisterPractitioner)
		rateLimited(r).Post("/practitioner-login", authHandler.LoginPractitioner)
		rateLimited(r).Post("/hospital-login", authHandler.LoginAs(model.RoleHospital))
		rateLimited(r).Post("/admin-login", authHandler.LoginAs(model.RoleAdmin))

		r.Post("/patient-logout", authHandler.Logout)
		r.With(authGate).Get("/is-auth", userHandler.IsAuthenticated)
	})

	r.Route("/api/common", func(r chi.Router) {
		r.Get("/logout", authHandler.Logout)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(authGate)
			r.Get("/is-auth", userHandler.IsAuthenticated)
			r.Get("/getuserdata", userHandler.GetUserData)
		})
	})

	r.With(authGate).Get("/api/patient/data", userHandler.GetPatientData)

	return r
}

// healthHandler はストアへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.ErrorContext(r.Context(), "health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
