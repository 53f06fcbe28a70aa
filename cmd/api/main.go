// Command api serves the forecast catalog over HTTP: available forecast
// dates and initialization times per source, the configured regions, and
// health, readiness, and metrics endpoints. It reads the same canonical
// store the syncd daemon writes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sewaa/forecast-sync/internal/api"
	"github.com/sewaa/forecast-sync/internal/config"
	"github.com/sewaa/forecast-sync/internal/observability"
	"github.com/sewaa/forecast-sync/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	resolver := &store.Resolver{ForecastsDir: cfg.ForecastsDir, JobsDir: cfg.JobsDir}
	srv := api.NewServer(cfg.HTTPAddr, resolver, &storeReadiness{dir: cfg.ForecastsDir}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// storeReadiness reports ready once the canonical store root exists.
type storeReadiness struct {
	dir string
}

func (s *storeReadiness) CheckReadiness(_ context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("forecast store unavailable: %w", err)
	}
	return nil
}
