package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fieldscan/internal/api"
	"fieldscan/internal/api/handlers"
	"fieldscan/internal/queue"
	"fieldscan/internal/repository"
	"fieldscan/internal/service"
	"fieldscan/pkg/auth"
	"fieldscan/pkg/config"
	"fieldscan/pkg/logger"
	"fieldscan/pkg/ocr"
	"fieldscan/pkg/postgres"

	"go.uber.org/zap"
)

// @title FieldScan API
// @version 1.0
// @description Document scan ingestion service: OCR for photographed financial documents and candidate matching against accounting records
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@fieldscan.dev

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting FieldScan service")

	// Apply database migrations
	if err := postgres.Migrate(&cfg.Database, appLogger); err != nil {
		appLogger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Initialize database
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db, appLogger)
	scanRepo := repository.NewScanRepository(db, appLogger)
	matchRepo := repository.NewMatchRepository(db, appLogger)
	accountingRepo := repository.NewAccountingRepository(db, appLogger)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration, cfg.JWT.RefreshExp)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtManager, appLogger)

	ocrEngine := ocr.NewEngine(&cfg.OCR, appLogger)
	if !ocrEngine.HealthCheck(ctx) {
		appLogger.Warn("OCR engine unavailable at startup; scans will fail until Tesseract is reachable")
	}

	matchingService := service.NewMatchingService(accountingRepo, cfg.Matching, appLogger)

	pool := queue.NewPool(queue.Config{
		Workers:  cfg.Worker.Count,
		Capacity: cfg.Worker.QueueSize,
	}, appLogger)

	scanService := service.NewScanService(scanRepo, matchingService, ocrEngine, pool, cfg.Upload.Dir, appLogger)
	matchService := service.NewMatchService(matchRepo, scanRepo, cfg.Matching.MaxResults, appLogger)

	pool.Start(ctx, scanService.Process)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, appLogger)
	scanHandler := handlers.NewScanHandler(scanService, appLogger)
	matchHandler := handlers.NewMatchHandler(matchService, appLogger)

	// Setup router
	app := api.SetupRouter(cfg, authHandler, scanHandler, matchHandler, ocrEngine, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		appLogger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server")
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
	pool.Stop()
}
