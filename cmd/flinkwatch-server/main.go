// Package main provides the flinkwatch server: it polls Flink, records state changes
// and serves the latest job view over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/flinkwatch/internal/client"
	"github.com/raphaelgruber/flinkwatch/internal/config"
	"github.com/raphaelgruber/flinkwatch/internal/db"
	"github.com/raphaelgruber/flinkwatch/internal/metrics"
	"github.com/raphaelgruber/flinkwatch/internal/server"
	"github.com/raphaelgruber/flinkwatch/internal/service"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	wipeDB := flag.Bool("wipe", false, "wipe all snapshots on startup (testing only)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger (dual output: stderr text + file JSON)
	logger, closeLog := config.SetupLogger(cfg)
	defer closeLog()

	logger.Info("flinkwatch-server starting",
		"version", version,
		"flink_url", cfg.FlinkURL,
		"poll_interval", cfg.PollInterval,
		"store_enabled", cfg.StoreEnabled,
		"port", cfg.ServerPort,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()

	flinkClient := client.New(client.Config{
		BaseURL:  cfg.FlinkURL,
		Username: cfg.FlinkUser,
		Password: cfg.FlinkPassword,
		Timeout:  cfg.FlinkTimeout,
		Strict:   cfg.Strict,
	}, client.WithLogger(logger), client.WithMetrics(collector))

	// A nil interface disables persistence; never assign a nil *db.Client to it.
	var store service.SnapshotStore
	if cfg.StoreEnabled {
		dbClient, err := connectStore(ctx, cfg, logger, *wipeDB || os.Getenv("FLINKWATCH_WIPE_DB") == "true")
		if err != nil {
			logger.Error("failed to set up snapshot store", "error", err)
			os.Exit(1)
		}
		defer func() {
			logger.Info("closing database connection")
			_ = dbClient.Close(context.Background())
		}()
		store = dbClient
	}

	watcher := service.NewWatcher(flinkClient, store,
		service.WithInterval(cfg.PollInterval),
		service.WithLogger(logger),
		service.WithMetrics(collector),
	)

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      server.New(watcher, collector, logger).Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 0, // websocket streams are long-lived
		IdleTimeout:  120 * time.Second,
	}

	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx) }()

	go func() {
		logger.Info("HTTP API available", "url", fmt.Sprintf("http://localhost:%s/jobs", cfg.ServerPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	<-watchErr

	logger.Info("shutdown complete")
}

func connectStore(ctx context.Context, cfg config.Config, logger *slog.Logger, wipe bool) (*db.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dbClient, err := db.NewClient(connectCtx, db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := dbClient.InitSchema(connectCtx); err != nil {
		_ = dbClient.Close(ctx)
		return nil, err
	}
	if wipe {
		if err := dbClient.WipeData(connectCtx); err != nil {
			_ = dbClient.Close(ctx)
			return nil, err
		}
	}
	return dbClient, nil
}
