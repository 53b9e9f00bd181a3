package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cors-gateway/internal/config"
	"cors-gateway/internal/server"
	"cors-gateway/pkg/logger"
)

func main() {
	bootstrap, err := config.LoadBootstrap()
	if err != nil {
		fmt.Printf("Failed to load bootstrap settings: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.LoadConfig(bootstrap.ConfigPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	bootstrap.ApplyTo(cfg)

	log := logger.NewLogger(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Fields: map[string]string{
			"service":     cfg.Tracing.ServiceName,
			"environment": bootstrap.Env,
			"version":     bootstrap.Version,
		},
	})
	defer logger.Sync(log)

	// Load route configuration
	routes, err := config.LoadRoutes(bootstrap.RoutesPath)
	if err != nil {
		log.Fatal("Failed to load route config",
			logger.Error(err),
			logger.String("config_file", bootstrap.RoutesPath))
	}

	srv, err := server.NewServer(cfg, routes, log, server.WithVersion(bootstrap.Version))
	if err != nil {
		log.Fatal("Failed to create server", logger.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	log.Info("CORS gateway is running",
		logger.String("address", cfg.Server.Address),
		logger.Int("routes", len(routes.Routes)),
	)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			log.Fatal("Server failed", logger.Error(err))
		}
		return
	}

	log.Info("Shutting down CORS gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		log.Error("Server forced to shutdown", logger.Error(err))
		return
	}

	log.Info("CORS gateway has been shutdown gracefully")
}
