package api

import (
	"fieldscan/docs"
	"fieldscan/internal/api/handlers"
	"fieldscan/pkg/auth"
	"fieldscan/pkg/config"
	"fieldscan/pkg/middleware"
	"fieldscan/pkg/ocr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

func SetupRouter(
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	scanHandler *handlers.ScanHandler,
	matchHandler *handlers.MatchHandler,
	ocrEngine *ocr.Engine,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.Upload.MaxFileSize),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	_ = docs.SwaggerInfo // ensure docs package is imported and init() is called
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Static("/uploads", cfg.Upload.Dir)

	app.Get("/health", func(c *fiber.Ctx) error {
		ocrStatus := "ok"
		if !ocrEngine.HealthCheck(c.Context()) {
			appLogger.Warn("OCR health check failed")
			ocrStatus = "unavailable"
		}
		return c.JSON(fiber.Map{
			"status": "ok",
			"ocr":    ocrStatus,
		})
	})

	// Auth routes (public)
	authGroup := app.Group("/user/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.Refresh)

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	scans := protected.Group("/scans")
	scans.Post("/upload", scanHandler.UploadScan)
	scans.Get("", scanHandler.ListScans)
	scans.Get("/:id", scanHandler.GetScan)
	scans.Post("/:id/retry", scanHandler.RetryScan)
	scans.Get("/:id/matches", matchHandler.ListMatches)
	scans.Post("/:id/matches/reject", matchHandler.RejectMatches)
	scans.Post("/:id/matches/:matchID/confirm", matchHandler.ConfirmMatch)

	return app
}
