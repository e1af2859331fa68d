package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("expected Env=prod, got %q", cfg.Env)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected LogLevel=info, got %q", cfg.LogLevel)
	}
	if cfg.BatchSize != 10000 {
		t.Errorf("expected BatchSize=10000, got %d", cfg.BatchSize)
	}
	if cfg.SplitLines != 500000 {
		t.Errorf("expected SplitLines=500000, got %d", cfg.SplitLines)
	}
	if cfg.HTTPTimeout != 30 || cfg.Timeout() != 30*time.Second {
		t.Errorf("expected HTTPTimeout=30s, got %d", cfg.HTTPTimeout)
	}
	if cfg.BulkEstimate != 50 {
		t.Errorf("expected BulkEstimate=50, got %d", cfg.BulkEstimate)
	}
	if cfg.RegistryPath != "config/repos.json" {
		t.Errorf("expected RegistryPath=config/repos.json, got %q", cfg.RegistryPath)
	}
	if cfg.GitHubToken != "" {
		t.Errorf("expected empty GitHubToken, got %q", cfg.GitHubToken)
	}
}

func TestLoad_ValidOverrides(t *testing.T) {
	t.Setenv("BLM_ENV", "dev")
	t.Setenv("BLM_LOG_LEVEL", "debug")
	t.Setenv("BLM_REGISTRY_PATH", "/tmp/repos.json")
	t.Setenv("BLM_MANIFEST_PATH", "/tmp/manifest.db")
	t.Setenv("BLM_DEFAULT_DESTINATION", "/srv/lists")
	t.Setenv("BLM_BATCH_SIZE", "500")
	t.Setenv("BLM_SPLIT_LINES", "1000")
	t.Setenv("BLM_HTTP_TIMEOUT", "5")
	t.Setenv("BLM_USER_AGENT", "custom-agent/2.0")
	t.Setenv("BLM_LISTING_CACHE_SIZE", "0")
	t.Setenv("BLM_BULK_ESTIMATE", "10")
	t.Setenv("BLM_GITHUB_TOKEN", " secret ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Env != "dev" || cfg.LogLevel != "debug" {
		t.Errorf("unexpected env/log level: %q/%q", cfg.Env, cfg.LogLevel)
	}
	if cfg.RegistryPath != "/tmp/repos.json" || cfg.ManifestPath != "/tmp/manifest.db" {
		t.Errorf("unexpected paths: %q %q", cfg.RegistryPath, cfg.ManifestPath)
	}
	if cfg.DefaultDestination != "/srv/lists" {
		t.Errorf("unexpected DefaultDestination: %q", cfg.DefaultDestination)
	}
	if cfg.BatchSize != 500 || cfg.SplitLines != 1000 {
		t.Errorf("unexpected sizes: batch=%d split=%d", cfg.BatchSize, cfg.SplitLines)
	}
	if cfg.Timeout() != 5*time.Second {
		t.Errorf("unexpected timeout: %v", cfg.Timeout())
	}
	if cfg.UserAgent != "custom-agent/2.0" {
		t.Errorf("unexpected UserAgent: %q", cfg.UserAgent)
	}
	if cfg.ListingCacheSize != 0 || cfg.BulkEstimate != 10 {
		t.Errorf("unexpected cache/estimate: %d %d", cfg.ListingCacheSize, cfg.BulkEstimate)
	}
	if cfg.GitHubToken != "secret" {
		t.Errorf("expected trimmed token, got %q", cfg.GitHubToken)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"env", "BLM_ENV", "staging"},
		{"log level", "BLM_LOG_LEVEL", "trace"},
		{"batch size zero", "BLM_BATCH_SIZE", "0"},
		{"batch size NaN", "BLM_BATCH_SIZE", "lots"},
		{"split lines negative", "BLM_SPLIT_LINES", "-5"},
		{"timeout too large", "BLM_HTTP_TIMEOUT", "99999"},
		{"negative cache", "BLM_LISTING_CACHE_SIZE", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_WhenKoanfDefaultLoadFails(t *testing.T) {
	orig := defaultLoader
	defaultLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { defaultLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatalf("expected error when loading defaults, got %v", err)
	}
}

func TestLoad_WhenKoanfEnvLoadFails(t *testing.T) {
	orig := envLoader
	envLoader = func(k *koanf.Koanf) error { return errors.New("mocked error") }
	defer func() { envLoader = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked error") {
		t.Fatalf("expected error when loading env, got %v", err)
	}
}

func TestLoad_RegisterValidationFails(t *testing.T) {
	orig := registerValidation
	registerValidation = func(v *validator.Validate) error { return errors.New("mocked validation error") }
	defer func() { registerValidation = orig }()

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "mocked validation error") {
		t.Fatalf("expected error when registering validation, got %v", err)
	}
}

func TestValidUserAgent(t *testing.T) {
	cases := []struct {
		input    string
		expected bool
	}{
		{"blmgr/0.1.0", true},
		{"Mozilla/5.0 (compatible; blmgr)", true},
		{"", false},
		{"   ", false},
		{"agent\r\nX-Injected: 1", false},
		{"tab\tagent", false},
	}

	validate := validator.New()
	_ = validate.RegisterValidation("user_agent", validUserAgent)

	for _, tc := range cases {
		type S struct {
			UA string `validate:"user_agent"`
		}
		err := validate.Struct(S{UA: tc.input})
		if tc.expected && err != nil {
			t.Errorf("validUserAgent(%q) = false, want true", tc.input)
		}
		if !tc.expected && err == nil {
			t.Errorf("validUserAgent(%q) = true, want false", tc.input)
		}
	}
}

func TestDefaultLoader_LoadsDefaults(t *testing.T) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		t.Fatalf("defaultLoader returned error: %v", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if cfg != DEFAULT_APP_CONFIG {
		t.Errorf("round-tripped defaults differ:\n got %+v\nwant %+v", cfg, DEFAULT_APP_CONFIG)
	}
}
