// Package router assembles the HTTP surface: global middleware, route groups and their gates.
package router

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/car-marketplace-api/internal/handler"
	"github.com/noah-isme/car-marketplace-api/internal/middleware"
	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/internal/ratelimit"
	"github.com/noah-isme/car-marketplace-api/internal/service"
	"github.com/noah-isme/car-marketplace-api/pkg/config"
	"github.com/noah-isme/car-marketplace-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/car-marketplace-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/car-marketplace-api/pkg/middleware/requestid"
)

// AuditRecorder persists audit entries for admin routes.
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Params groups router dependencies. Limiter and Audit are optional.
type Params struct {
	Config  *config.Config
	Logger  *zap.Logger
	Auth    *service.AuthService
	Catalog *service.CarService
	Metrics *service.MetricsService
	Limiter ratelimit.Limiter
	Audit   AuditRecorder
	Checks  map[string]handler.Pinger
}

// New builds the gin engine.
func New(p Params) *gin.Engine {
	logr := p.Logger
	if logr == nil {
		logr = zap.NewNop()
	}
	cfg := p.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(p.Metrics))

	metricsHandler := handler.NewMetricsHandler(p.Metrics, p.Checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(strings.TrimSuffix(cfg.APIPrefix, "/"))
	api.Use(middleware.WithResponseMeta())

	audited := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(p.Audit, logr, action, resource)
	}
	limited := middleware.RateLimit(p.Limiter, p.Metrics, logr)
	scopes := func(required ...string) gin.HandlerFunc {
		return middleware.RequireScopes(p.Auth, required...)
	}

	authHandler := handler.NewAuthHandler(p.Auth, handler.CookieConfig{Secure: !cfg.Debug})
	auth := api.Group("/auth")
	auth.POST("/register", limited, authHandler.Register)
	auth.POST("/login", limited, authHandler.Login)
	auth.GET("/refresh", limited, authHandler.Refresh)
	auth.POST("/refresh", limited, authHandler.Refresh)
	auth.GET("/logout", authHandler.Logout)
	auth.POST("/logout", authHandler.Logout)

	brandHandler := handler.NewBrandHandler(p.Catalog)
	modelHandler := handler.NewModelHandler(p.Catalog)
	carHandler := handler.NewCarHandler(p.Catalog)

	public := api.Group("/public")
	public.GET("/brands", brandHandler.List)
	public.GET("/brands/:id", brandHandler.Get)
	public.GET("/models", modelHandler.List)
	public.GET("/models/:id", modelHandler.Get)
	public.GET("/cars", carHandler.List)
	public.GET("/cars/:id", carHandler.Get)

	secured := api.Group("/secured")
	secured.Use(middleware.Authenticate(p.Auth))

	userHandler := handler.NewUserHandler(p.Auth)
	users := secured.Group("/users")
	users.GET("/me", scopes(models.ScopeUserRead), userHandler.Me)
	users.POST("", scopes(models.ScopeAdmin), userHandler.Create)
	users.GET("/:id", scopes(models.ScopeAdmin), userHandler.Get)
	users.PATCH("/:id", scopes(models.ScopeAdmin), userHandler.Update)
	users.POST("/:id/block", scopes(models.ScopeAdmin), userHandler.Block)
	users.POST("/:id/unblock", scopes(models.ScopeAdmin), userHandler.Unblock)

	scopeHandler := handler.NewScopeHandler(p.Auth)
	scopeRoutes := secured.Group("/scopes")
	scopeRoutes.GET("/me", scopes(models.ScopeUserRead), scopeHandler.Mine)
	scopeRoutes.GET("/users/:id", scopes(models.ScopeAdmin), scopeHandler.Get)
	scopeRoutes.POST("/users/:id", scopes(models.ScopeAdmin), scopeHandler.Add)
	scopeRoutes.PUT("/users/:id", scopes(models.ScopeAdmin), scopeHandler.Replace)
	scopeRoutes.DELETE("/users/:id", scopes(models.ScopeAdmin), scopeHandler.Remove)

	cars := secured.Group("/cars")
	cars.POST("", scopes(models.ScopeCarCreate), carHandler.Create)
	cars.PATCH("/:id", scopes(models.ScopeCarUpdate), carHandler.Update)
	cars.DELETE("/:id", scopes(models.ScopeCarDelete), carHandler.Delete)
	cars.POST("/:id/sold", scopes(models.ScopeCarUpdate), carHandler.MarkSold)

	admin := secured.Group("/admin")
	admin.GET("/metrics", scopes(models.ScopeAdmin), metricsHandler.Snapshot)

	admin.POST("/brands", scopes(models.ScopeAdminCarCreate), audited(models.AuditActionBrandCreate, "brand"), brandHandler.Create)
	admin.PATCH("/brands/:id", scopes(models.ScopeAdminCarUpdate), audited(models.AuditActionBrandUpdate, "brand"), brandHandler.Update)
	admin.DELETE("/brands/:id", scopes(models.ScopeAdminCarDelete), audited(models.AuditActionBrandDelete, "brand"), brandHandler.Delete)

	admin.POST("/models", scopes(models.ScopeAdminCarCreate), audited(models.AuditActionModelCreate, "model"), modelHandler.Create)
	admin.PATCH("/models/:id", scopes(models.ScopeAdminCarUpdate), audited(models.AuditActionModelUpdate, "model"), modelHandler.Update)
	admin.DELETE("/models/:id", scopes(models.ScopeAdminCarDelete), audited(models.AuditActionModelDelete, "model"), modelHandler.Delete)

	admin.PATCH("/listings/:id", scopes(models.ScopeAdminCarUpdate), audited(models.AuditActionListingUpdate, "car"), carHandler.AdminUpdate)
	admin.DELETE("/listings/:id", scopes(models.ScopeAdminCarDelete), audited(models.AuditActionListingDelete, "car"), carHandler.AdminDelete)

	return r
}
