package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/infohub/newsfeed/app/api"
	"github.com/infohub/newsfeed/app/cache"
	"github.com/infohub/newsfeed/app/cfg"
	"github.com/infohub/newsfeed/app/feed"
	"github.com/infohub/newsfeed/app/freshness"
	"github.com/infohub/newsfeed/app/proxy"
	"github.com/infohub/newsfeed/app/reader"
	"github.com/infohub/newsfeed/app/sources"
	"github.com/infohub/newsfeed/app/tasks"
)

func main() {
	appConfig, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appConfig == nil {
		// Help was shown, exit gracefully
		return
	}

	setupLogging(appConfig.Debug)
	slog.Info("Starting InfoHub newsfeed server", "version", appConfig.Version)

	db, err := cache.NewConnection(appConfig.DBPath)
	if err != nil {
		slog.Error("Failed to open cache database", "path", appConfig.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := cache.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Cache database ready", "path", appConfig.DBPath, "schema_version", version, "dirty", dirty)

	registry := sources.NewRegistry(appConfig.SourcesDir, appConfig.DefaultTTL)
	if err := registry.Run(); err != nil {
		slog.Error("Failed to load source configurations", "dir", appConfig.SourcesDir, "error", err)
		os.Exit(1)
	}
	slog.Info("Source configurations loaded", "dir", appConfig.SourcesDir, "count", registry.Count())

	resolver := proxy.NewResolver(
		appConfig.PrimaryProxyURL, appConfig.CORSProxyURL, appConfig.ReaderProxyURL,
		appConfig.UserAgent, time.Duration(appConfig.FetchTimeout)*time.Second)

	store := cache.NewStore(db)
	fetcher := feed.NewFetcher(resolver)
	controller := freshness.NewController(registry, fetcher, store)
	feedReader := reader.NewReader(store, registry, resolver)

	updates, unsubscribe := store.Subscribe()
	defer unsubscribe()
	go func() {
		for update := range updates {
			slog.Debug("Cache updated", "source", update.Source)
		}
	}()

	slog.Info("Starting background scheduler", "workers", appConfig.WorkerCount, "interval", appConfig.SchedulerInterval)
	scheduler := tasks.NewScheduler(registry, controller, store)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(registry, store, controller, feedReader)
	server := api.NewServer(handler, appConfig.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appConfig.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appConfig.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
