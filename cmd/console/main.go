package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"equipment-inventory-console/internal"
	"equipment-inventory-console/internal/backend"
	"equipment-inventory-console/internal/config"
	"equipment-inventory-console/internal/logger"
	"equipment-inventory-console/internal/querycache"

	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load and validate configuration
	cfg, err := config.LoadAndValidate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, logger.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := internal.NewMetrics()
	client := backend.New(backend.Options{
		BaseURL:  cfg.BackendURL,
		Timeout:  cfg.BackendTimeout,
		Retries:  cfg.BackendRetries,
		Logger:   log,
		Observer: metrics.ObserveBackend,
	})

	cache, err := openCache(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open query cache", zap.Error(err))
	}

	srv, err := internal.NewServer(cfg, client, cache, metrics, log)
	if err != nil {
		log.Fatal("Failed to create server", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Starting equipment inventory console",
		zap.String("addr", cfg.ListenAddr),
		zap.String("backend", cfg.BackendURL),
		zap.String("cache", cfg.CacheBackend),
		zap.String("jwt_issuer", cfg.JWTIssuer),
		zap.String("jwt_audience", cfg.JWTAudience),
		zap.Duration("jwt_expiry", cfg.JWTExpiry),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		log.Error("Server error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping server", zap.Error(err))
	}
	if err := srv.Close(shutdownCtx); err != nil {
		log.Error("Error closing query cache", zap.Error(err))
	}

	log.Info("Console stopped")
}

func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (*querycache.Cache, error) {
	switch cfg.CacheBackend {
	case config.CacheNone:
		return nil, nil
	case config.CacheRedis:
		store, err := querycache.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		return querycache.New(store, cfg.CacheTTL, "console:", log), nil
	default:
		return querycache.New(querycache.NewMemoryStore(), cfg.CacheTTL, "console:", log), nil
	}
}
