// Package main is the entry point for the anilink server.
//
// main only does three things: load configuration, build the logger, and
// hand both to internal/server. Everything else lives in internal/.
package main

import (
	"log/slog"
	"os"

	"github.com/sakif/anilink/internal/config"
	"github.com/sakif/anilink/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// LOG_LEVEL=debug is useful locally; production runs at info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := server.EnsureDataDir(cfg.DBPath); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
