// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the subsystems into one long-lived process.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wingedpig/logharbor/internal/api"
	"github.com/wingedpig/logharbor/internal/config"
	"github.com/wingedpig/logharbor/internal/discovery"
	"github.com/wingedpig/logharbor/internal/events"
	"github.com/wingedpig/logharbor/internal/index"
	"github.com/wingedpig/logharbor/internal/ingest"
	"github.com/wingedpig/logharbor/internal/scheduler"
	"github.com/wingedpig/logharbor/internal/search"
	"github.com/wingedpig/logharbor/internal/sshx"
	"github.com/wingedpig/logharbor/internal/store"
	"github.com/wingedpig/logharbor/internal/watcher"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	config     *config.Config

	eventBus      events.Bus
	store         *store.Store
	dialer        *sshx.Dialer
	indexes       *index.Manager
	discovery     *discovery.Engine
	ingest        *ingest.Pipeline
	search        *search.Engine
	scheduler     *scheduler.Scheduler
	configWatcher *watcher.ConfigWatcher
	apiServer     *api.Server

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
	Debug      bool
	Version    string
}

// New creates a new App instance.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		done:       make(chan struct{}),
	}

	var cfg *config.Config
	if opts.ConfigPath != "" {
		loader := config.NewLoader()
		loaded, err := loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.Defaults()
	}

	// Flags override the file.
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	app.config = cfg

	app.eventBus = events.NewMemoryBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    cfg.EventHistoryMaxAge(),
	})

	return app, nil
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	app.store = st
	log.Printf("Metadata store: %s", cfg.Store.Path)

	app.dialer = sshx.NewDialer(cfg.SSHTimeout(), cfg.SSH.CacheClients)
	app.indexes = index.NewManager(cfg.Index.Dir, cfg.Index.UseDeflateCompression)
	log.Printf("Index root: %s", cfg.Index.Dir)

	app.discovery = discovery.New(st, func(c *store.SSHConfig) (discovery.Runner, error) {
		return app.dialer.Dial(c)
	}, app.eventBus)

	app.ingest = ingest.New(st, func(c *store.SSHConfig) (ingest.Streamer, error) {
		return app.dialer.Dial(c)
	}, app.indexes, app.eventBus, cfg.Ingest.MaxParallelism)

	app.search = search.New(st, app.indexes)

	app.scheduler, err = scheduler.New(ctx,
		app.discovery.ProcessWatchers,
		app.ingest.IngestRecords,
		cfg.DiscoveryInterval(), cfg.IngestionInterval())
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	// Hot reload applies only settings that are safe to swap mid-run.
	if app.configPath != "" {
		cw, err := watcher.NewConfigWatcher(app.configPath, config.NewLoader(), app.eventBus, app.applyReload)
		if err != nil {
			log.Printf("Warning: config hot reload disabled: %v", err)
		} else {
			app.configWatcher = cw
		}
	}

	app.apiServer = api.NewServer(
		api.ServerConfig{
			Host:    cfg.Server.Host,
			Port:    cfg.Server.Port,
			TLSCert: cfg.Server.TLSCert,
			TLSKey:  cfg.Server.TLSKey,
		},
		api.Dependencies{
			Store:    app.store,
			Search:   app.search,
			EventBus: app.eventBus,
			Trigger:  app.scheduler,
			IndexDir: cfg.Index.Dir,
			Version:  app.version,
		},
	)

	return nil
}

// applyReload adopts a changed config file. Only ingest parallelism is applied
// live; server address, store path, index root, and cadences need a restart
// and are logged when they differ.
func (app *App) applyReload(cfg *config.Config) {
	app.mu.Lock()
	defer app.mu.Unlock()

	old := app.config
	if cfg.Server.Host != old.Server.Host || cfg.Server.Port != old.Server.Port {
		log.Printf("Config reload: server address change requires restart")
		cfg.Server = old.Server
	}
	if cfg.Store.Path != old.Store.Path {
		log.Printf("Config reload: store path change requires restart")
		cfg.Store = old.Store
	}
	if cfg.Index.Dir != old.Index.Dir {
		log.Printf("Config reload: index dir change requires restart")
		cfg.Index.Dir = old.Index.Dir
	}
	if cfg.Scheduler != old.Scheduler {
		log.Printf("Config reload: cadence change requires restart")
		cfg.Scheduler = old.Scheduler
	}

	app.config = cfg
	if app.ingest != nil {
		app.ingest.SetMaxParallelism(cfg.Ingest.MaxParallelism)
	}
	log.Printf("Config reloaded: maxParallelism=%d logLevel=%s",
		cfg.Ingest.MaxParallelism, cfg.Logging.Level)
}

// Start starts the scheduler and the API server.
func (app *App) Start(ctx context.Context) error {
	app.scheduler.Start()
	log.Printf("Scheduler started: discovery every %s, ingestion every %s",
		app.config.DiscoveryInterval(), app.config.IngestionInterval())

	go func() {
		log.Printf("Starting API server on %s:%d", app.config.Server.Host, app.config.Server.Port)
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
		}
	}()

	return nil
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown gracefully shuts down all components.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop accepting requests first.
	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.configWatcher != nil {
		app.configWatcher.Close()
	}

	// Waits for in-flight discovery/ingestion to finish.
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	if app.indexes != nil {
		if err := app.indexes.CloseAll(); err != nil {
			log.Printf("Error closing indexes: %v", err)
		}
	}

	if app.dialer != nil {
		app.dialer.CloseAll()
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}

	if app.eventBus != nil {
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop signals the app to shut down. Safe to call multiple times.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
