package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Success(t *testing.T) {
	setMinimalEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.App.Env != "dev" {
		t.Fatalf("expected App.Env to be dev, got %q", cfg.App.Env)
	}
	if got := cfg.Backend.BaseURL(); got != "http://localhost:8000/api" {
		t.Fatalf("unexpected backend url %q", got)
	}
	if cfg.LoginRateLimit.MaxFailures != 3 {
		t.Fatalf("expected 3 max failures, got %d", cfg.LoginRateLimit.MaxFailures)
	}
	if cfg.LoginRateLimit.Lockout != 5*time.Minute {
		t.Fatalf("expected 5m lockout, got %v", cfg.LoginRateLimit.Lockout)
	}
	if cfg.LoginRateLimit.KeyMode != LoginKeyConstant {
		t.Fatalf("expected constant key mode, got %q", cfg.LoginRateLimit.KeyMode)
	}
	if cfg.LoginRateLimit.TrustProxy {
		t.Fatalf("forwarding headers must not be trusted by default")
	}
	if cfg.Comments.CacheTTL != 30*time.Second {
		t.Fatalf("expected 30s comment cache, got %v", cfg.Comments.CacheTTL)
	}
	if cfg.Redis.Enabled() {
		t.Fatalf("redis should be disabled without url")
	}
	if cfg.Store.Name == "" {
		t.Fatalf("expected default store name")
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	setMinimalEnv(t)
	if err := os.Unsetenv(EnvAppEnv); err != nil {
		t.Fatalf("failed to unset %s: %v", EnvAppEnv, err)
	}

	if _, err := Load(); err == nil {
		t.Fatal("expected missing required env to return an error")
	}
}

func TestLoad_ProdRequiresProdURL(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvAppEnv, "prod")

	if _, err := Load(); err == nil {
		t.Fatal("expected prod without backend url to fail")
	}

	t.Setenv(EnvBackendProdURL, "https://api.bazarche.ir/api/")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.Backend.BaseURL(); got != "https://api.bazarche.ir/api" {
		t.Fatalf("expected prod url without trailing slash, got %q", got)
	}
}

func TestLoad_RejectsUnknownKeyMode(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv(EnvLoginKeyMode, "cookie")

	if _, err := Load(); err == nil {
		t.Fatal("expected unknown key mode to fail")
	}
}

func setMinimalEnv(t *testing.T) {
	t.Helper()

	t.Setenv(EnvAppEnv, "dev")
	t.Setenv(EnvPort, "8081")
	t.Setenv(EnvSessionSecret, "secret")
	t.Setenv(EnvBackendProdURL, "")
	t.Setenv(EnvLoginKeyMode, "")
	t.Setenv(EnvRedisURL, "")
}

func TestAppConfigEnvHelpers(t *testing.T) {
	devConfig := AppConfig{Env: "DEV"}
	if !devConfig.IsDev() {
		t.Fatalf("expected IsDev true for %q", devConfig.Env)
	}
	if devConfig.IsProd() {
		t.Fatalf("expected IsProd false for %q", devConfig.Env)
	}

	prodConfig := AppConfig{Env: "prod"}
	if !prodConfig.IsProd() {
		t.Fatalf("expected IsProd true for %q", prodConfig.Env)
	}
}

func TestConsoleLogs(t *testing.T) {
	if (AppConfig{LogFormat: "json"}).ConsoleLogs() {
		t.Fatalf("json format must not select console output")
	}
	if !(AppConfig{LogFormat: " Console "}).ConsoleLogs() {
		t.Fatalf("expected console output")
	}
}
