package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campuschat/internal/api"
	"campuschat/internal/api/handlers"
	"campuschat/internal/chunker"
	"campuschat/internal/extract"
	"campuschat/internal/index"
	"campuschat/internal/repository"
	"campuschat/internal/service"
	"campuschat/pkg/config"
	"campuschat/pkg/logger"
	"campuschat/pkg/postgres"

	"go.uber.org/zap"
)

// @title CampusChat API
// @version 1.0
// @description Retrieval-augmented chat service answering university questions in uz/ru/en.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

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
	appLogger.Info("Starting CampusChat service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Initialize vector index
	idx, err := newIndex(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize vector index", zap.Error(err))
	}

	// Initialize repositories
	docRepo := repository.NewDocumentRepository(db, appLogger)
	sessionRepo := repository.NewSessionRepository(db, appLogger)
	correctionRepo := repository.NewCorrectionRepository(db, appLogger)
	cacheRepo := repository.NewCacheRepository(db, appLogger)
	feedbackRepo := repository.NewFeedbackRepository(db, appLogger)
	analyticsRepo := repository.NewAnalyticsRepository(db, appLogger)

	// Initialize services
	llmService := service.NewLLMService(&cfg.Ollama, appLogger)
	cacheService := service.NewCacheService(cacheRepo, cfg.Cache.TTL, appLogger)
	sessionService := service.NewSessionService(sessionRepo, &cfg.Session, appLogger)
	retrievalService := service.NewRetrievalService(idx, &cfg.Retrieval, appLogger)
	correctionService := service.NewCorrectionService(correctionRepo, cacheService, idx, appLogger)

	extractor := extract.New(appLogger)
	ingestService := service.NewIngestService(docRepo, extractor, chunker.New(chunker.DefaultSize, chunker.DefaultOverlap), idx, appLogger)
	ingestService.Start(ctx, 2)

	chatService := service.NewChatService(
		sessionService,
		retrievalService,
		correctionService,
		cacheService,
		llmService,
		feedbackRepo,
		analyticsRepo,
		appLogger,
	)

	// Background maintenance: expired cache entries and idle sessions.
	go janitor(ctx, cacheService, sessionService, appLogger)

	// Initialize handlers
	chatHandler := handlers.NewChatHandler(chatService, appLogger)
	docHandler := handlers.NewDocumentHandler(ingestService, &cfg.Upload, appLogger)
	correctionHandler := handlers.NewCorrectionHandler(correctionService, appLogger)
	healthHandler := handlers.NewHealthHandler(db, idx, llmService, appLogger)

	// Setup router
	app := api.SetupRouter(chatHandler, docHandler, correctionHandler, healthHandler, cfg)

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
	cancel()
	if err := app.Shutdown(); err != nil {
		appLogger.Error("Server shutdown error", zap.Error(err))
	}
	if closer, ok := idx.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			appLogger.Error("Index shutdown error", zap.Error(err))
		}
	}
}

func newIndex(ctx context.Context, cfg *config.Config, appLogger *zap.Logger) (index.Adapter, error) {
	switch cfg.Index.Backend {
	case "qdrant":
		embedder := index.NewOllamaEmbedder(cfg.Ollama.BaseURL, cfg.Ollama.EmbeddingModel)
		return index.NewQdrantIndex(ctx, cfg.Index.QdrantHost, cfg.Index.QdrantPort, cfg.Index.Dimension, embedder, appLogger)
	default:
		return index.NewChromemIndex(cfg.Index.Path, cfg.Ollama.EmbeddingModel, cfg.Ollama.BaseURL, appLogger)
	}
}

func janitor(ctx context.Context, cache *service.CacheService, sessions *service.SessionService, appLogger *zap.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if purged, err := cache.PurgeExpired(ctx); err != nil {
				appLogger.Warn("Cache purge failed", zap.Error(err))
			} else if purged > 0 {
				appLogger.Info("Purged expired cache entries", zap.Int64("count", purged))
			}

			if closed, err := sessions.CloseIdle(ctx); err != nil {
				appLogger.Warn("Idle session sweep failed", zap.Error(err))
			} else if closed > 0 {
				appLogger.Info("Closed idle sessions", zap.Int64("count", closed))
			}
		}
	}
}
