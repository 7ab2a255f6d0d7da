package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/ulule/limiter/v3"

	"github.com/SscSPs/fare_collection_app/cmd/docs"
	portssvc "github.com/SscSPs/fare_collection_app/internal/core/ports/services"
	"github.com/SscSPs/fare_collection_app/internal/middleware"
	"github.com/SscSPs/fare_collection_app/internal/platform/config"
)

// RegisterRoutes sets up all ledger server routes, injecting dependencies using interfaces.
// db may be nil, in which case /health does not check the database.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	rateLimiter *limiter.Limiter,
	db Pinger,
) {
	RegisterValidators()

	r.GET("/health", healthHandler(db))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupAPIV1Routes(r, cfg, services, rateLimiter)

	setupSwaggerRoutes(r, cfg)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	rateLimiter *limiter.Limiter,
) {
	v1 := r.Group("/api/v1", middleware.MetricsMiddleware(), middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	if rateLimiter != nil {
		// After auth so conductors are limited by identity rather than by IP
		v1.Use(middleware.RateLimit(rateLimiter))
	}

	registerOperationRoutes(v1, services.Balance)
	registerPassengerRoutes(v1, services.Passenger, services.Balance, services.Reference)
	registerConductorRoutes(v1, services.Passenger, services.Reporting)
	registerSyncRoutes(v1, services.Sync, services.Verifier)
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
