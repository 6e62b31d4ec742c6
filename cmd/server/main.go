// Package main implements the entry point for the tasksync API server,
// which stores users' tasks and synchronizes them across their devices.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/phrazzld/tasksync-api/internal/config"
	"github.com/phrazzld/tasksync-api/internal/platform/logger"
)

func main() {
	if err := run(context.Background()); err != nil {
		log.Fatalf("tasksync-api: %v", err)
	}
}

// run loads configuration, builds the application and serves until a
// shutdown signal arrives.
func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("version", cfg.Server.Version),
		slog.Bool("rate_limit_enabled", cfg.RateLimit.Enabled()))

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
