package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reapply/internal/middleware"
)

// HealthChecker は依存先の疎通確認を行うインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService    AuthServiceInterface
	CredentialFlow CredentialFlowInterface
	AuthConfig     AuthHandlerConfig

	// 応募メール作成
	PipelineService PipelineServiceInterface

	// 応募記録・フォローアップ
	ApplicationService ApplicationServiceInterface
	FollowUpService    FollowUpServiceInterface

	// 設定
	MailService   MailServiceInterface
	ResumeService ResumeServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS
//	  └ /api/*: Session → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）とヘルスチェックはセッション必須のチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.AuthConfig.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: deps.AuthConfig.CookieSecure,
		CookieDomain: deps.AuthConfig.CookieDomain,
	}

	// パイプラインはコールバック後の送信再開にも使う
	authHandler := NewAuthHandler(deps.AuthService, deps.CredentialFlow, deps.PipelineService, deps.SessionFinder, deps.AuthConfig)
	pipelineHandler := NewPipelineHandler(deps.PipelineService)
	appHandler := NewApplicationHandler(deps.ApplicationService, deps.FollowUpService)
	mailHandler := NewMailHandler(deps.MailService)
	resumeHandler := NewResumeHandler(deps.ResumeService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/connect", authHandler.Connect)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(csrfConfig))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(csrfConfig))

		// 応募メール作成パイプライン
		r.Route("/api/pipeline", func(r chi.Router) {
			r.Get("/", pipelineHandler.Get)
			r.Delete("/", pipelineHandler.Abandon)
			r.Post("/details", pipelineHandler.SubmitDetails)
			r.Put("/draft", pipelineHandler.SaveDraft)
			r.Post("/back", pipelineHandler.Back)

			// POST /api/pipeline/send - 送信専用レート制限を追加
			r.With(deps.RateLimiter.SendMiddleware()).Post("/send", pipelineHandler.Send)
		})

		// 応募記録
		r.Route("/api/applications", func(r chi.Router) {
			r.Get("/", appHandler.List)
			r.Get("/stats", appHandler.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", appHandler.Get)
				r.Patch("/status", appHandler.UpdateStatus)
				r.Get("/follow-ups", appHandler.ListFollowUps)
				r.Post("/follow-ups", appHandler.ConfigureFollowUps)
			})
		})

		// メール連携
		r.Route("/api/mail", func(r chi.Router) {
			r.Get("/status", mailHandler.Status)
			r.Delete("/", mailHandler.Disconnect)
		})

		// 履歴書
		r.Route("/api/resumes", func(r chi.Router) {
			r.Get("/", resumeHandler.List)
			r.Post("/", resumeHandler.Upload)

			r.Route("/{name}", func(r chi.Router) {
				r.Put("/active", resumeHandler.SetActive)
				r.Delete("/", resumeHandler.Delete)
			})
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
