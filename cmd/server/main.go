package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"kasirledger/backend/internal/config"
	"kasirledger/backend/internal/httpapi"
	"kasirledger/backend/internal/lock"
	"kasirledger/backend/internal/logging"
	"kasirledger/backend/internal/numbering"
	"kasirledger/backend/internal/service"
	"kasirledger/backend/internal/store"
	"kasirledger/backend/internal/store/memory"
	pgstore "kasirledger/backend/internal/store/postgres"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	svc, closers, err := buildService(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("startup failed", zap.Error(err))
	}
	api := httpapi.New(svc, logger, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("ledger backend listening", zap.String("addr", cfg.Address()), zap.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

// buildService picks the repository and the quota lock/number counter. A set
// DATABASE_URL must be reachable; Redis is optional and falls back to the
// process-local lock and the repository counter.
func buildService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*service.Service, []func() error, error) {
	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.Database.URL != "" {
		pg, err := pgstore.New(ctx, cfg.Database.URL, pgstore.Options{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			MaxIdleConns: cfg.Database.MaxIdleConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set; refusing in-memory fallback: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.Database.AutoMigrate {
			if err := pg.EnsureSchema(ctx); err != nil {
				_ = pg.Close()
				return nil, nil, fmt.Errorf("apply schema: %w", err)
			}
		}
		repo = pg
		logger.Info("repository: postgres")
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository: in-memory")
	}

	opts := service.Options{
		Logger:          logger,
		DefaultTenantID: cfg.DefaultTenantID,
		DefaultStoreID:  cfg.DefaultStoreID,
		LockTTL:         cfg.QuotaLockTTL,
	}

	if cfg.Redis.Addr != "" {
		client := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		locker := lock.NewRedisLocker(client)
		if err := locker.Ping(ctx); err != nil {
			_ = locker.Close()
			logger.Warn("redis unavailable, using local lock and repository counter", zap.Error(err))
		} else {
			opts.Locker = locker
			opts.Allocator = numbering.NewRedisAllocator(client)
			closers = append(closers, locker.Close)
			logger.Info("quota lock: redis", zap.String("addr", cfg.Redis.Addr))
		}
	} else {
		logger.Info("quota lock: local")
	}

	return service.New(repo, opts), closers, nil
}

func validateConfig(cfg config.Config) error {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a number between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.AllowedOrigin == "" {
		return fmt.Errorf("ALLOWED_ORIGIN must be set")
	}
	if cfg.DefaultStoreID == "" {
		return fmt.Errorf("DEFAULT_STORE_ID must be set")
	}
	if cfg.Database.MaxIdleConns > cfg.Database.MaxOpenConns && cfg.Database.MaxOpenConns > 0 {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) exceeds DB_MAX_OPEN_CONNS (%d)", cfg.Database.MaxIdleConns, cfg.Database.MaxOpenConns)
	}
	return nil
}
