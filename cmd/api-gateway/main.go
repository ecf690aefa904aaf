package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/car-marketplace-api/api/swagger"
	"github.com/noah-isme/car-marketplace-api/internal/handler"
	"github.com/noah-isme/car-marketplace-api/internal/ratelimit"
	"github.com/noah-isme/car-marketplace-api/internal/repository"
	"github.com/noah-isme/car-marketplace-api/internal/router"
	"github.com/noah-isme/car-marketplace-api/internal/service"
	"github.com/noah-isme/car-marketplace-api/internal/token"
	"github.com/noah-isme/car-marketplace-api/internal/validation"
	"github.com/noah-isme/car-marketplace-api/pkg/cache"
	"github.com/noah-isme/car-marketplace-api/pkg/config"
	"github.com/noah-isme/car-marketplace-api/pkg/database"
	"github.com/noah-isme/car-marketplace-api/pkg/logger"
)

// @title Car Marketplace API
// @version 1.0.0
// @description Car listings with JWT sessions and scope-based access control
// @BasePath /api
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.RegisterGin(); err != nil {
		logr.Fatal("failed to register validators", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	checks := map[string]handler.Pinger{"postgres": db.PingContext}

	var (
		redisClient *redis.Client
		cacheRepo   service.CacheRepository
		limiter     ratelimit.Limiter
	)
	redisClient, err = cache.NewRedis(ctx, cfg.Redis)
	switch {
	case err == nil:
		defer redisClient.Close() //nolint:errcheck
		cacheRepo = repository.NewCacheRepository(redisClient)
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	case errors.Is(err, cache.ErrDisabled):
		logr.Info("redis disabled, using in-process rate limiting")
	default:
		logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
	}

	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			limiter = ratelimit.NewRedisLimiter(redisClient, "ratelimit:auth:", cfg.RateLimit.Max, cfg.RateLimit.Window)
		} else {
			limiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.Max, cfg.RateLimit.Window)
		}
	}

	codec, err := token.NewCodec(token.Config{
		Secret:     cfg.JWT.Secret,
		Algorithm:  cfg.JWT.Algorithm,
		AccessTTL:  cfg.JWT.Expiration,
		RefreshTTL: cfg.JWT.RefreshExpiration,
		Issuer:     cfg.JWT.Issuer,
	})
	if err != nil {
		logr.Fatal("invalid token configuration", zap.Error(err))
	}

	metrics := service.NewMetricsService()
	validate := validation.New()

	userRepo := repository.NewUserRepository(db)
	authService := service.NewAuthService(
		userRepo,
		repository.NewBannedTokenRepository(db),
		codec,
		validate,
		logr,
		metrics,
		service.AuthConfig{
			DefaultScopes:     cfg.Auth.DefaultScopes,
			MinPasswordLength: cfg.Auth.MinPasswordLength,
			BcryptCost:        cfg.Auth.BcryptCost,
		},
	)

	cacheService := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cacheRepo != nil)
	carService := service.NewCarService(service.CarServiceParams{
		Brands:    repository.NewBrandRepository(db),
		Models:    repository.NewModelRepository(db),
		Cars:      repository.NewCarRepository(db),
		Cache:     cacheService,
		Validator: validate,
		Logger:    logr,
		Config: service.CarServiceConfig{
			CacheTTL:    cfg.Catalog.CacheTTL,
			MaxListings: cfg.Catalog.MaxListings,
		},
	})

	r := router.New(router.Params{
		Config:  cfg,
		Logger:  logr,
		Auth:    authService,
		Catalog: carService,
		Metrics: metrics,
		Limiter: limiter,
		Audit:   userRepo,
		Checks:  checks,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
