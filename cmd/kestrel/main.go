// Kestrel - Risk assessment that answers before the payment clears.
// Copyright (c) 2025 Trustlane Labs
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	ossignal "os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trustlane/kestrel/internal/api"
	"github.com/trustlane/kestrel/internal/assess"
	"github.com/trustlane/kestrel/internal/bus"
	"github.com/trustlane/kestrel/internal/cache"
	"github.com/trustlane/kestrel/internal/domain"
	"github.com/trustlane/kestrel/internal/feature"
	"github.com/trustlane/kestrel/internal/monitor"
	"github.com/trustlane/kestrel/internal/notify"
	"github.com/trustlane/kestrel/internal/repository"
	"github.com/trustlane/kestrel/internal/signal"
	"github.com/trustlane/kestrel/internal/ticket"
	"github.com/trustlane/kestrel/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	// .env is optional; environment variables win over file values
	if err := godotenv.Load(); err == nil {
		slog.Debug("loaded .env file")
	}

	// Initialize structured logger
	logLevel := slog.LevelInfo
	if os.Getenv("KESTREL_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

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

	applyEnvOverrides(cfg)

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

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

	// All downstream notifications flow through the bus
	notifier := notify.NewBusNotifier(busImpl, logger)

	// Initialize the scorer registry. Invalid scorer configuration fails
	// startup rather than degrading silently at assessment time.
	registry, err := signal.NewRegistry(signal.DefaultRegistryConfig(), noiseSource(cfg))
	if err != nil {
		slog.Error("failed to initialize scorer registry", "error", err)
		os.Exit(1)
	}
	slog.Info("scorer registry initialized",
		"scorers", registry.Len(),
		"registry_version", registry.Version(),
	)

	// Initialize the assessment pipeline
	extractor := feature.NewExtractor(cfg, nil)
	service := assess.NewService(cfg, extractor, registry, repo, cacheImpl, notifier, nil, logger)
	slog.Info("assessment service initialized")

	// Initialize the review ticket workflow and SLA sweeper
	workflow := ticket.NewWorkflow(cfg, repo, notifier, nil, logger)
	sweeper := ticket.NewSweeper(workflow, cfg.Ticket.SweepInterval, logger)
	sweeper.Start()

	// Initialize the activity monitor
	mon := monitor.NewMonitor(cfg, cacheImpl, notifier, nil, logger)
	slog.Info("activity monitor initialized")

	// Initialize async Worker (Pro tier): consumes bus-fed activity
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("KESTREL_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, mon, logger)

		var tenantIDs []string
		if envTenants := os.Getenv("KESTREL_TENANTS"); envTenants != "" {
			for _, id := range strings.Split(envTenants, ",") {
				if id = strings.TrimSpace(id); id != "" {
					tenantIDs = append(tenantIDs, id)
				}
			}
		}

		if err := asyncWorker.Start(worker.Config{TenantIDs: tenantIDs}); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	// Initialize Server
	srv := api.NewServer(cfg.Server, service, workflow, mon, repo, cacheImpl, Version)

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

	// Stop async worker first
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("kestrel shutdown complete")
}

// applyEnvOverrides layers environment settings over the tier defaults.
func applyEnvOverrides(cfg *domain.Config) {
	if v := os.Getenv("KESTREL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("KESTREL_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("KESTREL_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("KESTREL_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("KESTREL_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
}

// noiseSource builds the score jitter source when experiments enable it.
// The default configuration leaves noise off and scoring deterministic.
func noiseSource(cfg *domain.Config) signal.NoiseSource {
	if cfg.Assessment.NoiseAmplitude <= 0 {
		return nil
	}
	return signal.NewSeededNoise(cfg.Assessment.NoiseAmplitude, cfg.Assessment.NoiseSeed)
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════╗")
	fmt.Println("  ║               KESTREL                     ║")
	fmt.Println("  ║       Risk Assessment Engine              ║")
	fmt.Println("  ║    Hovering over every payment.           ║")
	fmt.Println("  ╚═══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /assess                    - Assess a risk context")
	fmt.Println("    GET  /assessments/{id}          - Get assessment by ID")
	fmt.Println("    POST /activity                  - Ingest an activity event")
	fmt.Println("    GET  /subjects/{id}/activity    - Live window stats for a subject")
	fmt.Println("    GET  /tickets                   - List review tickets")
	fmt.Println("    GET  /tickets/{id}              - Get ticket by ID")
	fmt.Println("    POST /tickets/{id}/assign       - Assign a ticket to a reviewer")
	fmt.Println("    POST /tickets/{id}/decide       - Record a review decision")
	fmt.Println("    GET  /health                    - Health check")
	fmt.Println("    GET  /metrics                   - Prometheus metrics")
	fmt.Println()
}
