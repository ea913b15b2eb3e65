// Package main runs an in-memory intelligence backend for local development.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raphaelgruber/infomly/internal/config"
	"github.com/raphaelgruber/infomly/internal/devserver"
)

func main() {
	// Parse flags
	agents := flag.Int("agents", 4, "agents deployed per swarm run")
	agentDelay := flag.Duration("agent-delay", 3*time.Second, "time each agent takes to file its dossier")
	seed := flag.Bool("seed", true, "start with one published dossier per wing")
	flag.Parse()

	cfg := config.Load()
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("starting infomly-devserver", "port", cfg.DevServerPort, "agents", *agents)

	store := devserver.NewStore()
	if *seed {
		store.Seed()
	}
	swarm := devserver.NewSwarm(store, *agents, *agentDelay, logger)
	srv := devserver.New(store, swarm, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, ":"+cfg.DevServerPort); err != nil {
		logger.Error("server error", "error", err)
		cleanup()
		os.Exit(1)
	}
	logger.Info("server stopped")
}
