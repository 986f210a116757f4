package http

import (
	"github.com/databunker/price-checker/config"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log zerolog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(LoggerMiddleware(log))
	router.Use(RecoveryMiddleware(log))
	router.Use(MetricsMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health and diagnostics, served with and without the /api prefix
	for _, prefix := range []string{"", "/api"} {
		router.GET(prefix+"/health", handler.HealthCheck)
		router.GET(prefix+"/debug", handler.Debug)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var limiter *RateLimiter
	if cfg.RateLimit.PerIP > 0 {
		limiter = NewRateLimiter(cfg.RateLimit.PerIP, cfg.RateLimit.Burst)
	}

	lookups := router.Group("")
	lookups.Use(RateLimitMiddleware(limiter))
	lookups.Use(TimeoutMiddleware(cfg.Server.RequestTimeout))
	{
		lookups.POST("/check_price", handler.CheckPrice)
		lookups.POST("/api/check_price", handler.CheckPrice)
	}

	return router
}
