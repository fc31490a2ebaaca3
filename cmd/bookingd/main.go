// Command bookingd runs the interpretation-booking coordination daemon:
// it applies database migrations, wires the booking services and keeps the
// expiry sweeper running until shutdown.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nordtolk/booking-api/internal/bootstrap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := bootstrap.InitLogger(cfg.IsDev)
	logger.Info("starting bookingd", "dev", cfg.IsDev)

	db, err := bootstrap.ConnectDB(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.Error("closing database", "error", cerr)
		}
	}()

	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	}

	cache, err := bootstrap.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if cerr := cache.Close(); cerr != nil {
			logger.Error("closing redis", "error", cerr)
		}
	}()

	services := bootstrap.NewServices(cfg, db, cache, logger)

	logger.Info("sweeper running",
		"interval", cfg.Sweeper.Interval, "batch_size", cfg.Sweeper.BatchSize)
	if err := services.Sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("sweeper: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}
