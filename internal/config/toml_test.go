package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if cfg.API.BaseURL != nil {
		t.Fatalf("expected empty config")
	}
}

func TestLoadConfigAndResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[api]
base-url = "http://localhost:3333"
timeout = "3s"

[dashboard]
top = 3
rank-window = "month"
currency = "$"

[sales]
seller = "self"

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	file, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	s, err := Resolve(file, func(string) string { return "" })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.BaseURL != "http://localhost:3333" {
		t.Fatalf("unexpected base url %q", s.BaseURL)
	}
	if s.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %v", s.Timeout)
	}
	if s.Top != 3 || s.RankWindow != "month" || s.Currency != "$" {
		t.Fatalf("unexpected dashboard settings: %+v", s)
	}
	if s.Seller != "self" || s.LogLevel != "debug" {
		t.Fatalf("unexpected settings: %+v", s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	url := "http://file"
	file := FileConfig{API: APIConfig{BaseURL: &url}}
	env := map[string]string{
		EnvBaseURL:  "http://env",
		EnvLogLevel: "warn",
		EnvDBPath:   "/tmp/x.db",
	}
	s, err := Resolve(file, func(k string) string { return env[k] })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s.BaseURL != "http://env" || s.LogLevel != "warn" || s.DBPath != "/tmp/x.db" {
		t.Fatalf("env overrides not applied: %+v", s)
	}
}

func TestResolveRejectsBadTimeout(t *testing.T) {
	bad := "soon"
	if _, err := Resolve(FileConfig{API: APIConfig{Timeout: &bad}}, func(string) string { return "" }); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}
}

func TestValidate(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	s.RankWindow = "week"
	if err := s.Validate(); err == nil {
		t.Fatalf("expected rank window error")
	}
	s = DefaultSettings()
	s.Top = 0
	if err := s.Validate(); err == nil {
		t.Fatalf("expected top error")
	}
	s = DefaultSettings()
	s.Seller = "anyone"
	if err := s.Validate(); err == nil {
		t.Fatalf("expected seller error")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BOOKDESK_TEST_DOTENV=loaded\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("BOOKDESK_TEST_DOTENV") })
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load env: %v", err)
	}
	if got := os.Getenv("BOOKDESK_TEST_DOTENV"); got != "loaded" {
		t.Fatalf("expected variable from .env, got %q", got)
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file should not fail: %v", err)
	}
}
