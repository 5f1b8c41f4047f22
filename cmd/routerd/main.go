// Command routerd runs the provider routing core as a daemon: it loads
// configuration, restores persisted providers, starts the health monitor,
// and shuts down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Arashek/ADE-stable-1.0-sub004/app"
	"github.com/Arashek/ADE-stable-1.0-sub004/config"
	"github.com/Arashek/ADE-stable-1.0-sub004/internal/observability"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "routerd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wiring dependencies: %w", err)
	}

	restored, err := deps.RestoreProviders(ctx)
	if err != nil {
		logger.Warn("provider restore failed, starting with empty registry", zap.Error(err))
	} else if restored > 0 {
		logger.Info("restored providers", zap.Int("count", restored))
	}

	deps.Monitor.Start(ctx)
	logger.Info("routerd started",
		zap.String("environment", cfg.Environment),
		zap.Int("providers", deps.Registry.Len()))

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return deps.Close(shutdownCtx)
}
