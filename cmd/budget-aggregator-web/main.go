// Package main содержит точку входа веб‑интерфейса агрегатора бюджетов.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/app/budgetaggregator"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/config"
	"github.com/magabrotheeeer/budget-aggregator-web/internal/lib/sl"
)

const (
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()
	logger := setupLogger(cfg.Env)

	logger.Info("starting budget-aggregator-web", slog.String("env", cfg.Env))
	logger.Debug("debug messages are enabled")
	if cfg.Debug {
		logger.Warn("debug output of internal errors is enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := budgetaggregator.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("app stopped gracefully")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
