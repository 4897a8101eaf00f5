// Command blogstats serves the tracking and analytics API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"blogstats/internal"
	"blogstats/internal/pkg/geoip"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env", slog.Any("error", err))
	}

	if err := run(); err != nil {
		slog.Error("blogstats stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	app, err := internal.NewApp()
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	logger := app.Logger

	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("Database ready")

	if err := app.StartAsync(); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	logger.Info("blogstats started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(signals)

	// SIGHUP reloads the GeoLite2 file after an operator replaced it.
	for sig := range signals {
		if sig == syscall.SIGHUP {
			logger.Info("Reloading GeoLite2 database")
			geoip.ReloadGeoDB()
			continue
		}

		logger.Info("Shutting down", slog.String("signal", sig.String()))
		break
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Shutdown complete")
	return nil
}
