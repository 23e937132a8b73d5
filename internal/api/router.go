package api

import (
	"campuschat/internal/api/handlers"
	"campuschat/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

func SetupRouter(
	chatHandler *handlers.ChatHandler,
	docHandler *handlers.DocumentHandler,
	correctionHandler *handlers.CorrectionHandler,
	healthHandler *handlers.HealthHandler,
	cfg *config.Config,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BodyLimit:    cfg.Upload.MaxSizeMB * 1024 * 1024,
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
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(logger.New())

	api := app.Group("/api/v1")

	api.Get("/health", healthHandler.Health)

	chat := api.Group("/chat")
	chat.Post("/ask", chatHandler.Ask)
	chat.Post("/stream", chatHandler.Stream)
	chat.Get("/history", chatHandler.History)
	chat.Post("/feedback", chatHandler.Feedback)
	chat.Post("/close", chatHandler.Close)

	documents := api.Group("/documents")
	documents.Post("", docHandler.Create)
	documents.Get("", docHandler.List)
	documents.Get("/stats", docHandler.Stats)
	documents.Get("/:id", docHandler.Get)
	documents.Post("/:id/process", docHandler.Process)
	documents.Delete("/:id", docHandler.Delete)

	corrections := api.Group("/corrections")
	corrections.Post("", correctionHandler.Create)
	corrections.Get("", correctionHandler.List)
	corrections.Put("/:id", correctionHandler.Update)
	corrections.Delete("/:id", correctionHandler.Delete)

	return app
}
