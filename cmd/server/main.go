package main

import (
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically

	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"lunchbot-api/api/routes"
	"lunchbot-api/internal/chatbot"
	"lunchbot-api/internal/common"
	"lunchbot-api/internal/config"
	"lunchbot-api/internal/database"
	"lunchbot-api/internal/events"
	"lunchbot-api/internal/ledger"
	"lunchbot-api/internal/scheduler"
	"lunchbot-api/internal/sheets"
	"lunchbot-api/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger := logger.New(cfg.Server.Environment)
	defer zapLogger.Sync()

	location, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		zapLogger.Fatal("Invalid timezone", zap.String("timezone", cfg.Scheduler.Timezone), zap.Error(err))
	}
	clock := common.NewRealClock()

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := ledger.RunMigrations(db); err != nil {
		zapLogger.Fatal("Failed to run ledger migrations", zap.Error(err))
	}

	eventBus := events.NewEventBus(zapLogger)

	ledgerRepository := ledger.NewGormLedgerRepository(db, zapLogger)
	ledgerService := ledger.NewService(ledgerRepository, eventBus, zapLogger, cfg.Ledger, location, clock)

	var reconciler *sheets.Reconciler
	if cfg.Sheets.Enabled {
		source := sheets.NewHTTPCSVSource(cfg.Sheets.ExportURL,
			time.Duration(cfg.Sheets.Timeout)*time.Second, cfg.Sheets.MaxRetries, zapLogger)
		reconciler = sheets.NewReconciler(source, ledgerRepository, zapLogger)
		zapLogger.Info("Sheet reconciliation enabled")
	} else {
		zapLogger.Info("Sheet reconciliation disabled")
	}

	provider, err := chatbot.NewTelegramProvider(cfg.Chatbot, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize telegram provider", zap.Error(err))
	}
	bot := chatbot.NewChatbotService(provider, ledgerService, reconciler, eventBus, zapLogger,
		cfg.Chatbot, location, cfg.Ledger.CancelCutoffHour, clock)
	if err := bot.Start(); err != nil {
		zapLogger.Fatal("Failed to start chatbot service", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	var jobScheduler scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobs := scheduler.NewJobs(ledgerRepository, ledgerService, reconciler, eventBus,
			zapLogger, clock, location, cfg.Ledger.LowBalanceThreshold)
		jobScheduler, err = scheduler.NewScheduler(cfg.Scheduler, jobs, scheduler.NewJobMetrics(registry), zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := jobScheduler.Start(); err != nil {
			zapLogger.Fatal("Failed to start scheduler", zap.Error(err))
		}
		zapLogger.Info("Job scheduler started", zap.String("timezone", cfg.Scheduler.Timezone))
	} else {
		zapLogger.Info("Job scheduler disabled")
	}

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	routes.SetupRoutes(router, db, zapLogger, registry)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info("Starting ops server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down...")

	// Stop the update stream and the jobs before closing the bus, so no
	// handler publishes into a closed bus.
	if jobScheduler != nil {
		if err := jobScheduler.Stop(); err != nil {
			zapLogger.Error("Failed to stop scheduler gracefully", zap.Error(err))
		}
	}
	bot.Stop()

	if err := eventBus.Close(); err != nil {
		zapLogger.Error("Failed to close event bus", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}
