package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/haukened/blocklist-manager/internal/blocklist/common/clock"
	"github.com/haukened/blocklist-manager/internal/blocklist/common/log"
	"github.com/haukened/blocklist-manager/internal/blocklist/config"
	"github.com/haukened/blocklist-manager/internal/blocklist/gateways/download"
	"github.com/haukened/blocklist-manager/internal/blocklist/gateways/listing"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/listingcache"
	"github.com/haukened/blocklist-manager/internal/blocklist/repos/manifest"
	store "github.com/haukened/blocklist-manager/internal/blocklist/repos/registry"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/fetcher"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/merge"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/registry"
	"github.com/haukened/blocklist-manager/internal/blocklist/services/transform"
	"gitlab.com/tozd/go/errors"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "blmgr"
)

// Application holds the configured components shared by all commands.
type Application struct {
	config *config.AppConfig
	out    io.Writer
	errOut io.Writer

	engine *transform.Engine
	merger *merge.Merger

	// set from persistent flags before a command runs
	noProgress bool
	noColor    bool
	structured bool

	manager *registry.Manager
}

func main() {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Debug(map[string]any{
		"version":       version,
		"env":           cfg.Env,
		"log_level":     cfg.LogLevel,
		"registry_path": cfg.RegistryPath,
		"manifest_path": cfg.ManifestPath,
	}, "Starting blmgr")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app := buildApplication(cfg, os.Stdout, os.Stderr)
	if err := newRootCmd(app).ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "%s: %v\n", appName, err)
		cancel()
		os.Exit(1)
	}
}

// buildApplication wires the engines from cfg. The registry and the
// manifest are opened lazily by the commands that need them.
func buildApplication(cfg *config.AppConfig, out, errOut io.Writer) *Application {
	engine := transform.New(transform.Options{
		BatchSize: cfg.BatchSize,
		Logger:    log.Component("transform"),
	})

	merger := merge.New()
	merger.BatchSize = cfg.BatchSize
	merger.Logger = log.Component("merge")

	return &Application{
		config: cfg,
		out:    out,
		errOut: errOut,
		engine: engine,
		merger: merger,
	}
}

// registry returns the registry manager, loading the registry file on first use.
func (app *Application) registry() *registry.Manager {
	if app.manager == nil {
		logger := log.Component("registry")
		fs := store.NewFileStore(app.config.RegistryPath, store.DefaultSettings(app.config.DefaultDestination), logger)
		app.manager = registry.NewManager(fs, app.config.DefaultDestination, logger)
	}
	return app.manager
}

// openManifest opens the download manifest, creating its directory.
func (app *Application) openManifest() (manifest.Manifest, error) {
	if err := os.MkdirAll(filepath.Dir(app.config.ManifestPath), 0o755); err != nil {
		return nil, errors.Errorf("failed to create manifest directory: %w", err)
	}
	return manifest.Open(app.config.ManifestPath)
}

// buildFetcher constructs the fetcher and its gateways. The returned close
// function releases the manifest.
func (app *Application) buildFetcher() (*fetcher.Fetcher, func(), error) {
	cfg := app.config
	logger := log.Component("fetcher")

	cache, err := listingcache.New(cfg.ListingCacheSize)
	if err != nil {
		return nil, nil, errors.Errorf("failed to create listing cache: %w", err)
	}

	m, err := app.openManifest()
	if err != nil {
		// downloads still work without a manifest
		logger.Warn(map[string]any{"path": cfg.ManifestPath, "error": err.Error()}, "Manifest unavailable")
		m = manifest.Nop()
	}

	lister := listing.NewClient(listing.Options{
		Timeout:     cfg.Timeout(),
		UserAgent:   cfg.UserAgent,
		GitHubToken: cfg.GitHubToken,
	})
	downloader := download.New(download.Options{
		Timeout:   cfg.Timeout(),
		UserAgent: cfg.UserAgent,
	})

	log.Debug(map[string]any{
		"timeout":      cfg.Timeout(),
		"user_agent":   cfg.UserAgent,
		"cache_size":   cfg.ListingCacheSize,
		"github_token": cfg.GitHubToken != "",
	}, "Fetcher configured")

	f := fetcher.New(lister, downloader, fetcher.Options{
		BulkEstimate: cfg.BulkEstimate,
		Cache:        cache,
		Manifest:     m,
		Clock:        clock.RealClock{},
		Logger:       logger,
	})
	return f, func() { _ = m.Close() }, nil
}
