package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/salesarmbiz-Dev/aimacademy/internal/app"
	"github.com/salesarmbiz-Dev/aimacademy/internal/config"
	mcpserver "github.com/salesarmbiz-Dev/aimacademy/internal/mcp"
)

// cmdMCP starts the MCP server against the local store, on stdio or on addr
func cmdMCP(args []string) error {
	homeDir, err := config.EnsureHomeDir()
	if err != nil {
		return fmt.Errorf("ensure home dir: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries the protocol
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	engine, err := app.NewApp(ctx, app.AppConfig{
		Config:  cfg,
		HomeDir: homeDir,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer engine.Close()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{App: engine})
	if len(args) > 0 {
		logger.Warn("serving MCP over HTTP", "addr", args[0])
		return mcpSrv.ServeHTTP(ctx, args[0])
	}
	return mcpSrv.ServeStdio(ctx)
}
