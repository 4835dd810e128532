package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/linkbio/internal/guard"
	"github.com/hitoshi/linkbio/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	SessionSource     guard.Source
	MetricsHandler    http.Handler

	// 認証
	SessionService SessionService
	AuthConfig     AuthHandlerConfig

	// ページ編集
	PageService PageService

	// 公開ページ
	PublicPages PublicPageSource
	Sanitizer   TextSanitizer

	// リンクプレビュー
	PreviewService PreviewService
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit → CSRF
//
// /api/* はさらにルートガードの内側に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	signInPath := deps.AuthConfig.SignInPath

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware())
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.SessionService, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.PageService, signInPath)
	publicHandler := NewPublicHandler(deps.PublicPages, deps.Sanitizer)
	previewHandler := NewPreviewHandler(deps.PreviewService)

	// --- 認証不要のルート ---

	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/session", authHandler.Session)
		r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
		r.Post("/sign-in", authHandler.SignIn)
		r.Post("/sign-up", authHandler.SignUp)
		r.Post("/sign-out", authHandler.SignOut)
	})

	// 公開ページ
	r.Get("/l/{slug}", publicHandler.Get)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRouteGuardMiddleware(deps.SessionSource, signInPath))

		r.Route("/api/pages", func(r chi.Router) {
			r.Post("/", pageHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", pageHandler.Get)
				r.Put("/", pageHandler.Save)
				r.Delete("/", pageHandler.Delete)
			})
		})

		r.Post("/api/links/preview", previewHandler.Preview)
	})

	return r
}

// Health はプロセスが応答できることを返す。
// GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
