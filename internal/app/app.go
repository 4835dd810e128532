// Package app はコンパニオンサーバーの初期化と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/linkbio/internal/api"
	"github.com/hitoshi/linkbio/internal/config"
	"github.com/hitoshi/linkbio/internal/editor"
	"github.com/hitoshi/linkbio/internal/handler"
	"github.com/hitoshi/linkbio/internal/logger"
	"github.com/hitoshi/linkbio/internal/metrics"
	"github.com/hitoshi/linkbio/internal/middleware"
	"github.com/hitoshi/linkbio/internal/preview"
	"github.com/hitoshi/linkbio/internal/security"
	"github.com/hitoshi/linkbio/internal/session"
)

// startupCheckTimeout は起動時の認証確認に許す時間。
const startupCheckTimeout = 15 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("backend_url", cfg.BackendURL),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runServe(ctx, cfg)
}

// Server はワイヤリング済みのコンパニオンサーバー。
type Server struct {
	Store       *session.Store
	Revalidator *session.Revalidator
	Handler     http.Handler
	RateLimiter *middleware.RateLimiter
}

// Build は設定から全依存関係をワイヤリングする。
// ネットワーク呼び出しは行わない。
func Build(cfg *config.Config, log *slog.Logger, reg *prometheus.Registry) (*Server, error) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. バックエンドクライアントとセッションストア
	client, err := api.NewClient(api.Options{
		BaseURL:   cfg.BackendURL,
		Endpoints: cfg.Endpoints,
		Timeout:   cfg.BackendTimeout,
		RateLimit: cfg.BackendRateLimit,
		RateBurst: cfg.BackendRateBurst,
		Logger:    log,
		Metrics:   collector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}
	store := session.NewStore(client, log, collector)
	// ストアはクライアントを使って生成されるため、リフレッシュ先は後から注入する
	client.SetRefresher(store)

	// 3. セキュリティ
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	// 4. ドメインサービス
	editorService := editor.NewService(client, log, collector)
	previewFetcher := preview.NewFetcher(
		ssrfGuard, ssrfGuard.NewSafeClient(cfg.PreviewTimeout), sanitizer,
		cfg.PreviewMaxSize, log, collector,
	)

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		SessionSource:  store,
		MetricsHandler: metrics.Handler(reg),

		SessionService: store,
		AuthConfig: handler.AuthHandlerConfig{
			SignInPath:      cfg.SignInPath,
			AfterSignInPath: cfg.AfterSignInPath,
		},

		PageService: editorService,

		PublicPages: client,
		Sanitizer:   sanitizer,

		PreviewService: previewFetcher,
	})

	return &Server{
		Store:       store,
		Revalidator: session.NewRevalidator(store, log),
		Handler:     router,
		RateLimiter: rateLimiter,
	}, nil
}

// runServe はコンパニオンサーバーとして起動する。
// 起動時に認証状態を確認し、定期的な再検証を開始してからHTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := Build(cfg, log, reg)
	if err != nil {
		return err
	}
	defer srv.RateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("companion server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// 1. 起動時の認証確認。完了まで保護されたルートは503を返す
	checkCtx, cancelCheck := context.WithTimeout(ctx, startupCheckTimeout)
	snap := srv.Store.CheckAuthStatus(checkCtx)
	cancelCheck()
	slog.Info("認証状態を確認しました", slog.String("status", string(snap.Status)))

	// 2. セッションの定期再検証
	go srv.Revalidator.Start(ctx, cfg.SessionRevalidateInterval)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down companion server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("companion server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
