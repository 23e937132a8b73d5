package main

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"campuschat/internal/chunker"
	"campuschat/internal/extract"
	"campuschat/internal/index"
	"campuschat/internal/models"
	"campuschat/internal/repository"
	"campuschat/internal/service"
	"campuschat/pkg/config"
	"campuschat/pkg/logger"
	"campuschat/pkg/postgres"

	"go.uber.org/zap"
)

// Seeds the knowledge base from documents dropped into cmd/seed/data and
// registers a few starter corrections. Already processed files are skipped
// via a content-hash cache, so re-running is cheap.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	appLogger := logger.Get()

	// Connect to database
	ctx := context.Background()
	db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	idx, err := index.NewChromemIndex(cfg.Index.Path, cfg.Ollama.EmbeddingModel, cfg.Ollama.BaseURL, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to open vector index", zap.Error(err))
	}

	docRepo := repository.NewDocumentRepository(db, appLogger)
	correctionRepo := repository.NewCorrectionRepository(db, appLogger)
	cacheRepo := repository.NewCacheRepository(db, appLogger)

	cacheService := service.NewCacheService(cacheRepo, cfg.Cache.TTL, appLogger)
	correctionService := service.NewCorrectionService(correctionRepo, cacheService, idx, appLogger)
	ingestService := service.NewIngestService(docRepo, extract.New(appLogger), chunker.New(chunker.DefaultSize, chunker.DefaultOverlap), idx, appLogger)

	appLogger.Info("Starting database seeding...")

	seedDir := filepath.Join("cmd", "seed", "data")
	cacheFile := filepath.Join("cmd", "seed", ".seed_cache.json")
	if err := seedDocuments(ctx, seedDir, cacheFile, ingestService, appLogger); err != nil {
		appLogger.Fatal("Failed to seed documents", zap.Error(err))
	}
	if err := seedCorrections(ctx, correctionService, appLogger); err != nil {
		appLogger.Fatal("Failed to seed corrections", zap.Error(err))
	}

	appLogger.Info("Database seeding completed successfully!")
}

// processedFile marks one already ingested seed file.
type processedFile struct {
	FilePath    string    `json:"file_path"`
	FileHash    string    `json:"file_hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

type cacheData struct {
	ProcessedFiles map[string]processedFile `json:"processed_files"`
}

func loadCache(cacheFile string) (*cacheData, error) {
	cache := &cacheData{
		ProcessedFiles: make(map[string]processedFile),
	}

	data, err := os.ReadFile(cacheFile)
	if os.IsNotExist(err) {
		return cache, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return cache, nil
	}

	if err := json.Unmarshal(data, cache); err != nil {
		return nil, fmt.Errorf("failed to parse cache file: %w", err)
	}
	return cache, nil
}

func saveCache(cacheFile string, cache *cacheData) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}
	if err := os.WriteFile(cacheFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func seedDocuments(ctx context.Context, seedDir, cacheFile string, ingest *service.IngestService, appLogger *zap.Logger) error {
	cache, err := loadCache(cacheFile)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(seedDir)
	if os.IsNotExist(err) {
		appLogger.Warn("Seed data directory does not exist, skipping documents", zap.String("dir", seedDir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read seed directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		var sourceType models.SourceType
		switch ext {
		case ".pdf":
			sourceType = models.SourceTypePDF
		case ".docx", ".doc":
			sourceType = models.SourceTypeWord
		case ".txt", ".md":
			sourceType = models.SourceTypeText
		default:
			continue
		}

		path := filepath.Join(seedDir, entry.Name())
		hash, err := fileHash(path)
		if err != nil {
			return fmt.Errorf("failed to hash %s: %w", path, err)
		}
		if prev, ok := cache.ProcessedFiles[path]; ok && prev.FileHash == hash {
			appLogger.Info("Skipping already seeded file", zap.String("file", entry.Name()))
			continue
		}

		doc := &models.Document{
			Title:      strings.TrimSuffix(entry.Name(), ext),
			SourceType: sourceType,
			FilePath:   path,
		}
		if err := ingest.CreateDocument(ctx, doc); err != nil {
			return fmt.Errorf("failed to register %s: %w", entry.Name(), err)
		}
		if err := ingest.Process(ctx, doc.ID); err != nil {
			appLogger.Error("Failed to ingest seed file", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}

		cache.ProcessedFiles[path] = processedFile{
			FilePath:    path,
			FileHash:    hash,
			ProcessedAt: time.Now(),
		}
		appLogger.Info("Seeded document", zap.String("file", entry.Name()))
	}

	return saveCache(cacheFile, cache)
}

func seedCorrections(ctx context.Context, corrections *service.CorrectionService, appLogger *zap.Logger) error {
	starters := []*models.ManualCorrection{
		{
			Question:  "Qabul qachon boshlanadi?",
			Answer:    "Hujjatlarni qabul qilish har yili 20-iyundan 15-avgustgacha davom etadi. Aniq sanalarni universitet saytidagi e'lonlardan tekshiring.",
			Language:  "uz",
			MatchRule: models.MatchSemantic,
			IsActive:  true,
		},
		{
			Question:  "Сколько стоит контракт?",
			Answer:    "Стоимость контракта зависит от направления. Актуальные суммы публикуются на сайте университета в разделе приёма; уточнить их можно в приёмной комиссии.",
			Language:  "ru",
			MatchRule: models.MatchSemantic,
			IsActive:  true,
		},
		{
			Question:  "How can I contact the admissions office?",
			Answer:    "You can reach the admissions office by phone or through the contact form on the university website. The office works Monday to Saturday, 9:00-18:00.",
			Language:  "en",
			MatchRule: models.MatchExact,
			IsActive:  true,
		},
	}

	existing, err := corrections.List(ctx, false, 1, 0)
	if err != nil {
		return fmt.Errorf("failed to check existing corrections: %w", err)
	}
	if len(existing) > 0 {
		appLogger.Info("Corrections already present, skipping")
		return nil
	}

	for _, correction := range starters {
		if err := corrections.Create(ctx, correction); err != nil {
			return fmt.Errorf("failed to create correction: %w", err)
		}
	}
	appLogger.Info("Seeded starter corrections", zap.Int("count", len(starters)))
	return nil
}
