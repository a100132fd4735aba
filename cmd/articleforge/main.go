package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ArticleForge/internal/app"
	"ArticleForge/internal/config"
	"ArticleForge/internal/logging"
)

func main() {
	// Secrets come from the environment; a local .env is optional.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logging.New("info").Error("load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("init application", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		logger.Error("run failed", "error", err)
		stop()
		application.Close()
		os.Exit(1)
	}
}
