// Command promptsmith runs the prompt optimization service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/promptsmith/promptsmith/config"
	"github.com/promptsmith/promptsmith/llm"
	"github.com/promptsmith/promptsmith/optimizer"
	"github.com/promptsmith/promptsmith/providers"
	"github.com/promptsmith/promptsmith/server"
	"github.com/promptsmith/promptsmith/storage"
	"github.com/promptsmith/promptsmith/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "promptsmith:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting promptsmith", "provider", cfg.Provider, "model", cfg.Model, "port", cfg.HTTPPort)

	registry := providers.NewRegistry()
	gateway := llm.NewGateway(cfg, logger, registry)
	store := storage.NewMemStore()
	driver := optimizer.NewDriver(cfg, gateway, store, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(cfg, logger, gateway, driver, store).Run(ctx)
}
