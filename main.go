package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"InactivityBot/app"
	"InactivityBot/configuration"
	"InactivityBot/logger"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("Recovered from panic: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	logger.Log.Info("Bot starting...")
	if err := run(); err != nil {
		logger.Log.WithError(err).Error("Bot encountered an error and is shutting down")
		logger.Close()
		os.Exit(1)
	}
	logger.Close()
}

func run() error {
	cfg, err := configuration.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Setup(cfg.LogDir, cfg.LogLevel); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	logger.Log.Info("Database connection established successfully")

	if err := application.Start(ctx); err != nil {
		_ = application.Close()
		return err
	}

	logger.Log.Info("Bot is running")
	<-ctx.Done()

	logger.Log.Info("Shutting down bot gracefully...")
	if err := application.Close(); err != nil {
		return fmt.Errorf("error during graceful shutdown: %w", err)
	}
	return nil
}
