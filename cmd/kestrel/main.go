// Kestrel - Card fraud scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/opensource-finance/kestrel/internal/api"
	"github.com/opensource-finance/kestrel/internal/bus"
	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/guard"
	"github.com/opensource-finance/kestrel/internal/model"
	"github.com/opensource-finance/kestrel/internal/repository"
	"github.com/opensource-finance/kestrel/internal/scoring"
	"github.com/opensource-finance/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Log startup
	slog.Info("starting kestrel",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	// Load configuration
	cfg := domain.DefaultConfig()

	// Check for Pro tier via environment
	if os.Getenv("KESTREL_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	if dir := os.Getenv("KESTREL_ARTIFACTS"); dir != "" {
		cfg.ArtifactsDir = dir
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"artifacts", cfg.ArtifactsDir,
	)

	// Load model artifacts. The server refuses to start without them.
	artifacts, err := model.Load(cfg.ArtifactsDir)
	if err != nil {
		if errors.Is(err, model.ErrArtifactMissing) {
			slog.Error("model artifacts not found",
				"dir", cfg.ArtifactsDir,
				"hint", "run the train command to produce them",
				"error", err,
			)
		} else {
			slog.Error("failed to load model artifacts", "error", err)
		}
		os.Exit(1)
	}
	scorer := scoring.NewScorer(artifacts)
	slog.Info("model loaded",
		"dir", cfg.ArtifactsDir,
		"features", len(artifacts.FeatureNames),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	// Initialize Cache
	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Initialize Guard Engine
	guards, err := guard.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize guard engine", "error", err)
		os.Exit(1)
	}
	if err := loadGuardsFromDatabase(ctx, repo, guards); err != nil {
		slog.Error("failed to load guards", "error", err)
		os.Exit(1)
	}
	slog.Info("guard engine initialized", "guards_count", guards.GuardsCount())

	// Initialize async audit Worker (Pro tier)
	asyncAudit := cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_AUDIT") == "true"
	var asyncWorker *worker.Worker
	if asyncAudit {
		asyncWorker = worker.NewWorker(busImpl, repo)

		// Get tenant IDs to process (from environment or default)
		tenantIDs := parseTenants(os.Getenv("KESTREL_TENANTS"))

		workerCfg := worker.Config{
			TenantIDs: tenantIDs,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start audit worker", "error", err)
		} else {
			slog.Info("audit worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, guards, scorer, Version, asyncAudit, cfg.Cache.ScoreTTL)

	// Start Server in goroutine
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("kestrel is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Stop audit worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop audit worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// GlobalTenantID is used for guards that apply to all tenants.
const GlobalTenantID = "*"

// parseTenants splits a comma-separated tenant list from the environment.
// Empty entries are dropped; an empty value yields nil (global worker).
func parseTenants(env string) []string {
	var tenants []string
	for _, t := range strings.Split(env, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants
}

// loadGuardsFromDatabase loads guards from the database into the engine,
// falling back to the built-in range checks when the database holds none.
func loadGuardsFromDatabase(ctx context.Context, repo domain.Repository, engine *guard.Engine) error {
	dbGuards, err := repo.ListGuardConfigs(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list guards from database", "error", err)
		dbGuards = nil
	}

	if len(dbGuards) > 0 {
		slog.Info("loading guards from database", "count", len(dbGuards))
		return engine.LoadGuards(dbGuards)
	}

	slog.Info("no guards in database - loading built-in set")
	return engine.LoadGuards(guard.DefaultGuards())
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               🪶 KESTREL                  ║")
	fmt.Println("  ║       Card Fraud Scoring Engine           ║")
	fmt.Println("  ║       Hovering over every swipe.          ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /score          - Score a transaction record")
	fmt.Println("    GET  /scores         - List recent scores")
	fmt.Println("    GET  /scores/{id}    - Get score by ID")
	fmt.Println("    GET  /model          - Model info and importances")
	fmt.Println("    GET  /guards         - List all guards")
	fmt.Println("    POST /guards         - Create a new guard")
	fmt.Println("    POST /guards/reload  - Hot-reload guards from database")
	fmt.Println("    GET  /health         - Health check")
	fmt.Println()
}
