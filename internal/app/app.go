// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app assembles the Roost daemon: config, event bus, worker
// supervisor, conversation registry, session store, and the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roosthq/roost/internal/api"
	"github.com/roosthq/roost/internal/config"
	"github.com/roosthq/roost/internal/events"
	"github.com/roosthq/roost/internal/netport"
	"github.com/roosthq/roost/internal/session"
	"github.com/roosthq/roost/internal/stream"
	"github.com/roosthq/roost/internal/worker"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	config        *config.Config
	eventBus      events.Bus
	ports         *netport.Allocator
	supervisor    *worker.Supervisor
	conversations *stream.Conversations
	sessionStore  *session.Store
	sessionIndex  *session.Index
	apiServer     *api.Server

	group    *errgroup.Group
	groupCtx context.Context

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string
	Host       string
	Port       int
}

// New creates a new App instance.
func New(opts Options) (*App, error) {
	app := &App{
		done: make(chan struct{}),
	}

	loader := config.NewLoader()
	var cfg *config.Config
	if opts.ConfigPath == "" {
		cfg = loader.Default()
	} else {
		var err error
		cfg, err = loader.LoadWithDefaults(context.Background(), opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	app.config = cfg

	// Command line overrides
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	app.eventBus = events.NewMemoryBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
	})

	return app, nil
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	cfg := app.config

	app.ports = netport.New()
	app.supervisor = worker.NewSupervisor(cfg.Worker, app.eventBus, app.ports)
	app.conversations = stream.NewConversations(app.supervisor, stream.NewClient(), app.eventBus)

	codec := session.NewCodec(app.eventBus)
	app.sessionStore = session.NewStore(cfg.Sessions.Dir, codec, app.eventBus)
	app.sessionIndex = session.NewIndex(cfg.Sessions, codec)
	if err := os.MkdirAll(cfg.Sessions.Dir, 0755); err != nil {
		log.Printf("Warning: failed to create sessions dir %s: %v", cfg.Sessions.Dir, err)
	} else if err := app.sessionIndex.Watch(); err != nil {
		// Listing still works without the watcher, just without cache
		// invalidation on external writes.
		log.Printf("Warning: session watcher unavailable: %v", err)
	}

	app.apiServer = api.NewServer(
		api.ServerConfig{
			Host: cfg.Server.Host,
			Port: cfg.Server.Port,
		},
		api.Dependencies{
			Supervisor:    app.supervisor,
			Conversations: app.conversations,
			SessionStore:  app.sessionStore,
			SessionIndex:  app.sessionIndex,
			EventBus:      app.eventBus,
		},
	)

	return nil
}

// Start launches the API server.
func (app *App) Start(ctx context.Context) error {
	app.group, app.groupCtx = errgroup.WithContext(ctx)
	app.group.Go(func() error {
		if err := app.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	return nil
}

// Run initializes and starts the daemon, then blocks until a signal,
// context cancellation, or Stop.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.groupCtx.Done():
		log.Printf("Server stopped, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	shutdownErr := app.Shutdown(context.Background())
	if err := app.group.Wait(); err != nil {
		return err
	}
	return shutdownErr
}

// Shutdown stops components in order: HTTP server first so no new
// requests arrive, then workers (fire-and-forget), then the bus.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.supervisor != nil {
		app.supervisor.StopAll()
	}

	if app.sessionIndex != nil {
		app.sessionIndex.Close()
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

// Config returns the loaded configuration.
func (app *App) Config() *config.Config {
	return app.config
}
