package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/authware/rbac-core/internal/api"
	"github.com/authware/rbac-core/internal/config"
	"github.com/authware/rbac-core/internal/registry"
	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/pkg/cache"
	"github.com/authware/rbac-core/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting rbac-core", "environment", cfg.Environment)

	var valkey cache.Valkey
	if cfg.Cache.Enabled {
		valkey, err = cache.New(cfg.Cache.Addr, cfg.Cache.DB, cfg.Cache.Password,
			time.Duration(cfg.Cache.TTL)*time.Second)
		if err != nil {
			logger.Warn("Valkey unavailable, falling back to in-process cache", "error", err)
			valkey = cache.NewNoop(logger)
		} else {
			logger.Info("Valkey cache initialized", "addr", cfg.Cache.Addr)
		}
	} else {
		valkey = cache.NewNoop(logger)
	}

	store, err := policy.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to policy database", "error", err)
	}
	logger.Info("Policy store connected",
		"host", cfg.Database.Host, "database", cfg.Database.Name)

	server, err := api.NewServer(cfg, logger, valkey, store, registry.Default)
	if err != nil {
		logger.Fatal("Failed to build API server", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("Server failed", "error", err)
	}

	logger.Info("rbac-core shutdown complete")
}
