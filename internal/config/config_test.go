package config

import (
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("BACKEND_URL", "https://api.example.com/")

	// 実行環境の値が既定値の検証に混入しないよう空にしておく
	for _, key := range []string{
		"BACKEND_TIMEOUT", "BACKEND_RATE_LIMIT", "BACKEND_RATE_BURST",
		"BACKEND_AUTH_PREFIX", "BACKEND_PAGES_PREFIX", "BACKEND_LINKS_PREFIX", "BACKEND_PUBLIC_PREFIX",
		"SIGN_IN_PATH", "AFTER_SIGN_IN_PATH", "SESSION_REVALIDATE_INTERVAL",
		"PREVIEW_TIMEOUT", "PREVIEW_MAX_SIZE", "RATE_LIMIT_GENERAL", "LOG_LEVEL",
		"SERVER_PORT", "BASE_URL", "COOKIE_DOMAIN", "CORS_ALLOWED_ORIGIN",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 末尾のスラッシュは除去される
	if cfg.BackendURL != "https://api.example.com" {
		t.Errorf("BackendURL = %q, want %q", cfg.BackendURL, "https://api.example.com")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// Backend defaults
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("BackendTimeout = %v, want %v", cfg.BackendTimeout, 10*time.Second)
	}
	if cfg.BackendRateLimit != 10 {
		t.Errorf("BackendRateLimit = %v, want %v", cfg.BackendRateLimit, 10)
	}
	if cfg.BackendRateBurst != 20 {
		t.Errorf("BackendRateBurst = %d, want %d", cfg.BackendRateBurst, 20)
	}
	if cfg.Endpoints != DefaultEndpoints() {
		t.Errorf("Endpoints = %+v, want %+v", cfg.Endpoints, DefaultEndpoints())
	}

	// Navigation defaults
	if cfg.SignInPath != "/sign-in" {
		t.Errorf("SignInPath = %q, want %q", cfg.SignInPath, "/sign-in")
	}
	if cfg.AfterSignInPath != "/pages" {
		t.Errorf("AfterSignInPath = %q, want %q", cfg.AfterSignInPath, "/pages")
	}

	// Session / preview defaults
	if cfg.SessionRevalidateInterval != 5*time.Minute {
		t.Errorf("SessionRevalidateInterval = %v, want %v", cfg.SessionRevalidateInterval, 5*time.Minute)
	}
	if cfg.PreviewTimeout != 5*time.Second {
		t.Errorf("PreviewTimeout = %v, want %v", cfg.PreviewTimeout, 5*time.Second)
	}
	if cfg.PreviewMaxSize != 1048576 {
		t.Errorf("PreviewMaxSize = %d, want %d", cfg.PreviewMaxSize, 1048576)
	}

	// Server defaults
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want %d", cfg.RateLimitGeneral, 120)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.BaseURL != "http://localhost:8080" {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, "http://localhost:8080")
	}
	if cfg.CookieSecure {
		t.Error("CookieSecure should be false for http BaseURL")
	}
	if cfg.CORSAllowedOrigin != "http://localhost:3000" {
		t.Errorf("CORSAllowedOrigin = %q, want %q", cfg.CORSAllowedOrigin, "http://localhost:3000")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)

	t.Setenv("BACKEND_TIMEOUT", "30s")
	t.Setenv("BACKEND_RATE_LIMIT", "2.5")
	t.Setenv("BACKEND_RATE_BURST", "5")
	t.Setenv("BACKEND_AUTH_PREFIX", "api/v1/auth/")
	t.Setenv("BACKEND_LINKS_PREFIX", "/api/v1/links")
	t.Setenv("SIGN_IN_PATH", "/login")
	t.Setenv("SESSION_REVALIDATE_INTERVAL", "0s")
	t.Setenv("PREVIEW_MAX_SIZE", "2048")
	t.Setenv("SERVER_PORT", "3000")
	t.Setenv("BASE_URL", "https://links.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.BackendTimeout != 30*time.Second {
		t.Errorf("BackendTimeout = %v, want %v", cfg.BackendTimeout, 30*time.Second)
	}
	if cfg.BackendRateLimit != 2.5 {
		t.Errorf("BackendRateLimit = %v, want %v", cfg.BackendRateLimit, 2.5)
	}
	if cfg.BackendRateBurst != 5 {
		t.Errorf("BackendRateBurst = %d, want %d", cfg.BackendRateBurst, 5)
	}
	if cfg.Endpoints.AuthPrefix != "/api/v1/auth" {
		t.Errorf("AuthPrefix = %q, want %q", cfg.Endpoints.AuthPrefix, "/api/v1/auth")
	}
	if cfg.Endpoints.LinksPrefix != "/api/v1/links" {
		t.Errorf("LinksPrefix = %q, want %q", cfg.Endpoints.LinksPrefix, "/api/v1/links")
	}
	if cfg.SignInPath != "/login" {
		t.Errorf("SignInPath = %q, want %q", cfg.SignInPath, "/login")
	}
	if cfg.SessionRevalidateInterval != 0 {
		t.Errorf("SessionRevalidateInterval = %v, want 0", cfg.SessionRevalidateInterval)
	}
	if cfg.PreviewMaxSize != 2048 {
		t.Errorf("PreviewMaxSize = %d, want %d", cfg.PreviewMaxSize, 2048)
	}
	if cfg.ServerPort != "3000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "3000")
	}
	if !cfg.CookieSecure {
		t.Error("CookieSecure should be true for https BaseURL")
	}
}

func TestLoad_InvalidNumbers_FallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("BACKEND_TIMEOUT", "soon")
	t.Setenv("BACKEND_RATE_BURST", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.BackendTimeout != 10*time.Second {
		t.Errorf("BackendTimeout = %v, want %v", cfg.BackendTimeout, 10*time.Second)
	}
	if cfg.BackendRateBurst != 20 {
		t.Errorf("BackendRateBurst = %d, want %d", cfg.BackendRateBurst, 20)
	}
}

func TestLoad_MissingBackendURL_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("BACKEND_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing BACKEND_URL, got nil")
	}
}

func TestLoad_BackendURLWithoutScheme_ReturnsError(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("BACKEND_URL", "api.example.com")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for BACKEND_URL without scheme, got nil")
	}
}
