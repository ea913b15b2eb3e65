// Package main provides the entry point for the infomly MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/raphaelgruber/infomly/internal/config"
	"github.com/raphaelgruber/infomly/internal/query"
	"github.com/raphaelgruber/infomly/internal/server"
	"github.com/raphaelgruber/infomly/internal/service"
	"github.com/raphaelgruber/infomly/internal/tools"
)

const version = "0.1.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON); stdout carries the protocol
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("infomly-mcp starting", "version", version, "api_url", cfg.APIURL)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	api := client.New(cfg.APIURL,
		client.WithTimeout(cfg.ClientTimeout),
		client.WithLogger(logger),
	)
	cache := query.NewCache(
		query.WithStaleTime(cfg.StaleTime),
		query.WithLogger(logger),
	)

	// Create and setup server
	srv := server.New(version, logger)
	srv.Setup()

	// Register tools
	deps := &tools.Dependencies{
		Swarm:    service.NewSwarmService(api, cache, cfg.StatusInterval, logger),
		Findings: service.NewFindingService(api, cache, cfg.FindingsInterval, logger),
		Logger:   logger,
	}
	tools.RegisterAll(srv.MCPServer(), deps)

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
