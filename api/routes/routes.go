package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lunchbot-api/api/handlers"
	"lunchbot-api/api/middleware"
)

// SetupRoutes wires the ops surface: health probes and the metrics endpoint.
// All bot traffic flows over Telegram long polling, not HTTP.
func SetupRoutes(router *gin.Engine, db *gorm.DB, logger *zap.Logger, registry *prometheus.Registry) {
	router.Use(middleware.RequestLogging(logger))
	router.Use(gin.Recovery())

	healthHandler := handlers.NewHealthHandler(db, logger)

	router.GET("/health", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
}
