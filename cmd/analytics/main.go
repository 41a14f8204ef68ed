package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/khaledhawil/DevSecOps-Project/internal/core/config"
	"github.com/khaledhawil/DevSecOps-Project/internal/core/storage/postgres"
	"github.com/khaledhawil/DevSecOps-Project/internal/ingestion"
	"github.com/khaledhawil/DevSecOps-Project/internal/migrations"
	"github.com/khaledhawil/DevSecOps-Project/internal/rollup"
	"github.com/khaledhawil/DevSecOps-Project/internal/server"
	"github.com/khaledhawil/DevSecOps-Project/internal/stats"
)

func main() {
	configPath := flag.String("config", "analytics.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "config", cfg)

	// 2. Initialize Storage (PostgreSQL)
	eventStore, err := postgres.NewAdapter(
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
	)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer eventStore.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(eventStore.DB(), cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	statsStore := postgres.NewStatsAdapter(eventStore.DB())

	// 3. Initialize the counter updater and rollup engine
	updater := stats.NewUpdater(statsStore, cfg.Statistics.MaxRetryAttempts)
	rollupEngine := rollup.NewEngine(eventStore, statsStore, cfg.Rollup.BatchSize)

	scheduler := rollup.NewScheduler(
		rollupEngine,
		cfg.CheckIntervalDuration(),
		cfg.Rollup.StatTypes,
	)

	slog.Info("Rollup scheduler initialized",
		"interval", cfg.Rollup.CheckInterval,
		"enabled", cfg.Rollup.Enabled,
		"stat_types", cfg.Rollup.StatTypes,
		"batch_size", cfg.Rollup.BatchSize,
	)

	// 4. Initialize Services
	ingestionSvc := ingestion.NewService(eventStore, updater, cfg.Server.MaxBodySizeMB)
	statsSvc := stats.NewService(statsStore, eventStore, rollupEngine)

	// 5. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), eventStore.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	statsSvc.RegisterRoutes(srv.Engine)

	// 6. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Rollup.Enabled {
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Rollup scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
