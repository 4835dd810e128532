// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	BackendURL       string
	BackendTimeout   time.Duration
	BackendRateLimit float64
	BackendRateBurst int
	Endpoints        Endpoints

	// Navigation
	SignInPath      string
	AfterSignInPath string

	// Session
	SessionRevalidateInterval time.Duration

	// Preview
	PreviewTimeout time.Duration
	PreviewMaxSize int64

	// Rate Limit
	RateLimitGeneral int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Endpoints はバックエンドAPIのパス接頭辞。
// 実際のパスは api パッケージが接頭辞とIDから組み立てる。
type Endpoints struct {
	AuthPrefix   string
	PagesPrefix  string
	LinksPrefix  string
	PublicPrefix string
}

// DefaultEndpoints はバックエンドの標準的なパス接頭辞を返す。
func DefaultEndpoints() Endpoints {
	return Endpoints{
		AuthPrefix:   "/auth",
		PagesPrefix:  "/pages",
		LinksPrefix:  "/links",
		PublicPrefix: "/pages",
	}
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BackendURL = strings.TrimRight(os.Getenv("BACKEND_URL"), "/")
	if cfg.BackendURL == "" {
		missing = append(missing, "BACKEND_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if !strings.HasPrefix(cfg.BackendURL, "http://") && !strings.HasPrefix(cfg.BackendURL, "https://") {
		return nil, fmt.Errorf("BACKEND_URL must start with http:// or https://: %q", cfg.BackendURL)
	}

	// Optional fields with defaults
	defaults := DefaultEndpoints()
	cfg.Endpoints = Endpoints{
		AuthPrefix:   getEnvPath("BACKEND_AUTH_PREFIX", defaults.AuthPrefix),
		PagesPrefix:  getEnvPath("BACKEND_PAGES_PREFIX", defaults.PagesPrefix),
		LinksPrefix:  getEnvPath("BACKEND_LINKS_PREFIX", defaults.LinksPrefix),
		PublicPrefix: getEnvPath("BACKEND_PUBLIC_PREFIX", defaults.PublicPrefix),
	}
	cfg.BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 10*time.Second)
	cfg.BackendRateLimit = getEnvFloat("BACKEND_RATE_LIMIT", 10)
	cfg.BackendRateBurst = getEnvInt("BACKEND_RATE_BURST", 20)
	cfg.SignInPath = getEnvString("SIGN_IN_PATH", "/sign-in")
	cfg.AfterSignInPath = getEnvString("AFTER_SIGN_IN_PATH", "/pages")
	cfg.SessionRevalidateInterval = getEnvDuration("SESSION_REVALIDATE_INTERVAL", 5*time.Minute)
	cfg.PreviewTimeout = getEnvDuration("PREVIEW_TIMEOUT", 5*time.Second)
	cfg.PreviewMaxSize = getEnvInt64("PREVIEW_MAX_SIZE", 1048576)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvPath はパス接頭辞を読み込み、先頭のスラッシュを補い末尾のスラッシュを除去する。
func getEnvPath(key, defaultVal string) string {
	v := strings.TrimRight(getEnvString(key, defaultVal), "/")
	if !strings.HasPrefix(v, "/") {
		v = "/" + v
	}
	return v
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
