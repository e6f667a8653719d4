package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/aryan0dhankhar/orderme/internal/domain"
	"github.com/aryan0dhankhar/orderme/internal/featureflags"
	"github.com/aryan0dhankhar/orderme/internal/handler"
	"github.com/aryan0dhankhar/orderme/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/orderme/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/orderme/internal/observability/tracing"
	"github.com/aryan0dhankhar/orderme/internal/reliability/retry"
	"github.com/aryan0dhankhar/orderme/internal/repository"
	"github.com/aryan0dhankhar/orderme/internal/security/audit"
	"github.com/aryan0dhankhar/orderme/internal/security/auth"
	"github.com/aryan0dhankhar/orderme/internal/service"
	"github.com/aryan0dhankhar/orderme/pkg/config"
	"github.com/aryan0dhankhar/orderme/pkg/database"
)

const serviceName = "orderme"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	log.Info("starting OrderMe server", slog.String("environment", cfg.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	shutdownTracing, err := tracing.Init(ctx, log, tracing.Options{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.OTLPEndpoint,
		SampleRatio: cfg.TracingSampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracing shutdown failed", slog.String("error", err.Error()))
		}
	}()

	checks := map[string]handler.Pinger{}

	// 4. User store
	var users domain.UserRepository
	var memoryStore *repository.MemoryUserRepository
	if cfg.UsesMemoryStore() {
		log.Warn("using in-memory user store; accounts are lost on restart")
		memoryStore = repository.NewMemoryUserRepository()
		users = memoryStore
	} else {
		pool, err := connectDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		checks["database"] = pool
		users = repository.NewPostgresUserRepository(pool.DB(), log)
	}

	// 5. Optional user cache
	if featureflags.Enabled(featureflags.UserCache) {
		var userCache repository.UserCache
		if cfg.RedisURL != "" {
			redisClient, err := retry.Do(ctx, retry.DefaultConfig(), log, "redis connect",
				func(ctx context.Context) (*redis.Client, error) {
					return redis.NewClient(ctx, cfg.RedisURL, serviceName+":", log)
				})
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer redisClient.Close()
			checks["redis"] = redisClient
			userCache = redisClient
		} else {
			userCache = repository.NewLocalCache(10000)
		}
		users = repository.NewCachedUserRepository(users, userCache, cfg.UserCacheTTL, log)
		log.Info("user cache enabled",
			slog.Bool("redis", cfg.RedisURL != ""),
			slog.Duration("ttl", cfg.UserCacheTTL),
		)
	}

	// 6. Security components
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:     cfg.SecretKey,
		Algorithm:  cfg.Algorithm,
		DefaultTTL: cfg.AccessTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init token codec: %w", err)
	}
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	resolver := auth.NewIdentityResolver(codec, users)
	auditLogger := audit.NewLogger(log)

	// 7. Services and routes
	authService := service.NewAuthService(users, hasher, codec, auditLogger, log)
	router := handler.NewRouter(handler.RouterConfig{
		AuthService:       authService,
		Resolver:          resolver,
		Audit:             auditLogger,
		Health:            handler.NewHealthHandler(checks, log),
		AllowedOrigins:    cfg.CORSAllowedOrigins,
		FormTokenEndpoint: featureflags.EnabledDefault(featureflags.FormTokenEndpoint, true),
		Logger:            log,
	})

	// 8. Start HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("algorithm", codec.Algorithm()),
		slog.Duration("token_ttl", codec.DefaultTTL()),
		slog.Bool("memory_store", memoryStore != nil),
	)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
	return nil
}

// connectDatabase opens the pool with retries and applies migrations.
func connectDatabase(ctx context.Context, cfg *config.Config, log *slog.Logger) (*database.ConnectionPool, error) {
	pool, err := retry.Do(ctx, retry.DefaultConfig(), log, "database connect",
		func(ctx context.Context) (*database.ConnectionPool, error) {
			return database.NewConnectionPool(ctx, &database.Config{
				URL:             cfg.DatabaseURL,
				MaxOpenConns:    cfg.DBMaxOpenConns,
				MaxIdleConns:    cfg.DBMaxIdleConns,
				ConnMaxLifetime: cfg.DBConnMaxLifetime,
			}, log)
		})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if cfg.RunMigrations {
		if err := migrate(ctx, pool.DB(), log); err != nil {
			_ = pool.Close()
			return nil, err
		}
	}
	return pool, nil
}

func migrate(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return err
	}
	log.Info("database migrations applied")
	return nil
}
