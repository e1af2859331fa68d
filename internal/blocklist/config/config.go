package config

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// RegistryPath is the JSON document holding repository sources and settings.
	RegistryPath string `koanf:"registry_path" validate:"required"`

	// ManifestPath is the bbolt database recording completed downloads.
	ManifestPath string `koanf:"manifest_path" validate:"required"`

	// DefaultDestination seeds the registry settings when no registry exists yet.
	DefaultDestination string `koanf:"default_destination" validate:"required"`

	// BatchSize is the number of lines processed between progress notifications.
	BatchSize int `koanf:"batch_size" validate:"required,gte=1"`

	// SplitLines is the default maximum number of lines per split part.
	SplitLines int `koanf:"split_lines" validate:"required,gte=1"`

	// HTTPTimeout bounds every listing and download request, in seconds.
	HTTPTimeout int `koanf:"http_timeout" validate:"required,gte=1,lte=3600"`

	// UserAgent identifies the fetcher to remote servers.
	UserAgent string `koanf:"user_agent" validate:"required,user_agent"`

	// ListingCacheSize bounds how many listing responses are kept during one fetch run.
	ListingCacheSize int `koanf:"listing_cache_size" validate:"gte=0"`

	// BulkEstimate is the per-source file count assumed for bulk sources when
	// computing fetch progress.
	BulkEstimate int `koanf:"bulk_estimate" validate:"required,gte=1"`

	// GitHubToken enables authenticated GitHub API listings when set.
	GitHubToken string `koanf:"github_token"`
}

// Timeout returns HTTPTimeout as a duration.
func (c *AppConfig) Timeout() time.Duration {
	return time.Duration(c.HTTPTimeout) * time.Second
}

// DEFAULT_APP_CONFIG defines the default application configuration.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:                "prod",
	LogLevel:           "info",
	RegistryPath:       "config/repos.json",
	ManifestPath:       "config/manifest.db",
	DefaultDestination: "blocklists",
	BatchSize:          10000,
	SplitLines:         500000,
	HTTPTimeout:        30,
	UserAgent:          "blmgr/0.1.0",
	ListingCacheSize:   32,
	BulkEstimate:       50,
}

// validUserAgent rejects empty agents and agents containing control characters,
// which would corrupt the request header.
func validUserAgent(fl validator.FieldLevel) bool {
	ua := strings.TrimSpace(fl.Field().String())
	if ua == "" {
		return false
	}
	for _, r := range ua {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// envLoader loads environment variables with the prefix "BLM_".
// It transforms the keys to lowercase and removes the prefix.
// It can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "BLM_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "BLM_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "user_agent" tag with the provided validator.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("user_agent", validUserAgent)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
