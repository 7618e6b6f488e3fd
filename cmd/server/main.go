package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/JonMunkholm/certforge/internal/config"
	"github.com/JonMunkholm/certforge/internal/core"
	"github.com/JonMunkholm/certforge/internal/layouts"
	"github.com/JonMunkholm/certforge/internal/logging"
	"github.com/JonMunkholm/certforge/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	// Match GOMAXPROCS to the container CPU quota before sizing workers.
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...any) {
		logger.Debug("maxprocs", "msg", strings.TrimSpace(fmt.Sprintf(format, args...)))
	})); err != nil {
		logger.Warn("failed to set GOMAXPROCS", "error", err)
	}

	slog.Info("configuration loaded", "config", cfg.String())

	ctx := context.Background()
	store, closeStore := openLayoutStore(ctx, cfg)
	defer closeStore()

	fonts := core.NewFontBook(logger, cfg.Fonts.Dirs, cfg.Fonts.Fallbacks)
	service := core.NewService(core.ServiceConfig{
		Generator: core.GeneratorConfig{
			Workers:     cfg.Generation.Workers,
			MaxRows:     cfg.Generation.MaxRows,
			JPEGQuality: cfg.Generation.JPEGQuality,
			Fonts:       fonts,
			Logger:      logger,
		},
		MaxConcurrent: cfg.Generation.MaxConcurrent,
		MaxWait:       cfg.Generation.MaxWaitTime,
		Timeout:       cfg.Generation.Timeout,
		Layouts:       store,
		Logger:        logger,
	})

	slog.Info("generator ready",
		"workers", service.Workers(),
		"max_concurrent_batches", service.Status().MaxConcurrent,
		"font_dirs", cfg.Fonts.Dirs,
	)

	server := web.NewServer(service, store, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Let running batches finish so clients get their downloads.
		if status := service.Status(); status.Active > 0 {
			slog.Info("waiting for batches to complete", "active", status.Active)
			if err := service.WaitForBatches(shutdownCtx); err != nil {
				slog.Warn("batches did not complete in time", "error", err)
			} else {
				slog.Info("all batches completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// openLayoutStore connects to PostgreSQL when DATABASE_URL is set and falls
// back to an in-memory store otherwise.
func openLayoutStore(ctx context.Context, cfg *config.Config) (layouts.Store, func()) {
	if !cfg.Database.Enabled() {
		slog.Warn("no DATABASE_URL set, layouts are kept in memory")
		return layouts.NewMemoryStore(), func() {}
	}

	pool, err := layouts.OpenPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := layouts.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		slog.Error("failed to migrate layout store", "error", err)
		os.Exit(1)
	}
	return store, pool.Close
}
