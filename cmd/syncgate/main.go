// Package main is the entry point for the syncgate server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"syncgate/config"
	"syncgate/internal/app"
	"syncgate/internal/logging"
	"syncgate/internal/version"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	configPath := flag.String("config", "syncgate.yaml", "Path to the YAML config file")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	format := cfg.Logging.Format
	level := cfg.Logging.Level
	if cfg.Gateway.Debug {
		level = "debug"
	}
	logger := logging.Setup(os.Stdout, level, format)

	logger.Info("starting syncgate",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
		"storage_type", cfg.Storage.Type,
		"cache_enabled", cfg.Gateway.CacheEnabled,
	)

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
		}
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
