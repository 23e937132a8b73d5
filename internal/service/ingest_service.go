package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"campuschat/internal/chunker"
	"campuschat/internal/extract"
	"campuschat/internal/index"
	"campuschat/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	List(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, kind models.ErrorKind, detail string) error
	ReplaceChunks(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error
	ListChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*models.DocumentStats, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, doc *models.Document) (string, error)
}

// IngestService runs the document pipeline: extract, chunk, embed, persist.
// Documents move pending -> processing -> completed or failed; re-ingestion
// restarts the cycle and atomically replaces the old chunk set.
type IngestService struct {
	docs      DocumentStore
	extractor TextExtractor
	chunker   *chunker.Chunker
	index     index.Adapter
	logger    *zap.Logger

	queue chan uuid.UUID

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewIngestService(docs DocumentStore, extractor TextExtractor, ch *chunker.Chunker, idx index.Adapter, logger *zap.Logger) *IngestService {
	return &IngestService{
		docs:      docs,
		extractor: extractor,
		chunker:   ch,
		index:     idx,
		logger:    logger,
		queue:     make(chan uuid.UUID, 64),
		inflight:  make(map[uuid.UUID]struct{}),
	}
}

// Start launches background ingestion workers. They drain the queue until
// ctx is cancelled.
func (s *IngestService) Start(ctx context.Context, workers int) {
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-s.queue:
					if err := s.Process(ctx, id); err != nil {
						s.logger.Error("Document ingestion failed",
							zap.String("document_id", id.String()),
							zap.Error(err),
						)
					}
				}
			}
		}()
	}
}

// CreateDocument registers a new knowledge source and queues it for
// ingestion.
func (s *IngestService) CreateDocument(ctx context.Context, doc *models.Document) error {
	if (doc.FilePath == "") == (doc.SourceURL == "") {
		return fmt.Errorf("exactly one of file path and source url must be set")
	}

	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	doc.Status = models.StatusPending
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now

	if err := s.docs.Create(ctx, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}

	s.Enqueue(doc.ID)
	return nil
}

// Enqueue schedules a document for (re-)ingestion. Non-blocking; a full
// queue is reported to the caller.
func (s *IngestService) Enqueue(id uuid.UUID) bool {
	select {
	case s.queue <- id:
		return true
	default:
		s.logger.Warn("Ingestion queue is full", zap.String("document_id", id.String()))
		return false
	}
}

// Process runs the full pipeline for one document. Safe to call for an
// already completed document; that re-ingests it.
func (s *IngestService) Process(ctx context.Context, id uuid.UUID) error {
	if !s.acquire(id) {
		return ErrDocumentBusy
	}
	defer s.release(id)

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to load document: %w", err)
	}

	claimed, err := s.docs.MarkProcessing(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to claim document: %w", err)
	}
	if !claimed {
		return ErrDocumentBusy
	}

	started := time.Now()
	s.logger.Info("Document ingestion started",
		zap.String("document_id", id.String()),
		zap.String("source_type", string(doc.SourceType)),
	)

	text, err := s.extractor.Extract(ctx, doc)
	if err != nil {
		return s.fail(ctx, id, classifyExtractError(err), err)
	}

	doc.Lang = detectLanguage(text)
	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return s.fail(ctx, id, models.ErrorKindExtraction, fmt.Errorf("no usable content after chunking"))
	}

	ingestedAt := time.Now().UTC()
	chunks := make([]*models.DocumentChunk, 0, len(pieces))
	entries := make([]index.Entry, 0, len(pieces))
	for i, piece := range pieces {
		chunkID := uuid.New()
		chunks = append(chunks, &models.DocumentChunk{
			ID:          chunkID,
			DocumentID:  doc.ID,
			ChunkIndex:  i,
			Content:     sanitizeUTF8(piece),
			Lang:        doc.Lang,
			EmbeddingID: chunkID.String(),
			CreatedAt:   ingestedAt,
		})
		entries = append(entries, index.Entry{
			ID:   chunkID.String(),
			Text: piece,
			Metadata: map[string]string{
				"document_id": doc.ID.String(),
				"title":       doc.Title,
				"lang":        doc.Lang,
				"ingested_at": ingestedAt.Format(time.RFC3339),
			},
		})
	}

	// Old vectors go first so re-ingestion never doubles a document.
	where := map[string]string{"document_id": doc.ID.String()}
	if err := s.index.Delete(ctx, index.CollectionChunks, where); err != nil {
		return s.fail(ctx, id, models.ErrorKindEmbedding, fmt.Errorf("failed to drop stale vectors: %w", err))
	}
	if err := s.index.Upsert(ctx, index.CollectionChunks, entries); err != nil {
		return s.fail(ctx, id, models.ErrorKindEmbedding, err)
	}

	if err := s.docs.ReplaceChunks(ctx, doc, chunks); err != nil {
		return s.fail(ctx, id, models.ErrorKindStorage, err)
	}

	s.logger.Info("Document ingestion completed",
		zap.String("document_id", id.String()),
		zap.String("lang", doc.Lang),
		zap.Int("chunks", len(chunks)),
		zap.Duration("took", time.Since(started)),
	)
	return nil
}

func (s *IngestService) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (s *IngestService) List(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.docs.List(ctx, status, limit, offset)
}

// Delete removes a document together with its chunks and vectors.
func (s *IngestService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	where := map[string]string{"document_id": id.String()}
	if err := s.index.Delete(ctx, index.CollectionChunks, where); err != nil {
		s.logger.Warn("Failed to drop document vectors", zap.String("document_id", id.String()), zap.Error(err))
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	s.logger.Info("Document deleted", zap.String("document_id", id.String()))
	return nil
}

func (s *IngestService) Stats(ctx context.Context) (*models.DocumentStats, error) {
	return s.docs.Stats(ctx)
}

func (s *IngestService) fail(ctx context.Context, id uuid.UUID, kind models.ErrorKind, cause error) error {
	if err := s.docs.MarkFailed(ctx, id, kind, cause.Error()); err != nil {
		s.logger.Error("Failed to mark document failed", zap.String("document_id", id.String()), zap.Error(err))
	}
	return fmt.Errorf("%s: %w", kind, cause)
}

func (s *IngestService) acquire(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *IngestService) release(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

func classifyExtractError(err error) models.ErrorKind {
	switch {
	case errors.Is(err, extract.ErrSourceNotFound):
		return models.ErrorKindSourceLost
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return models.ErrorKindUnsupported
	default:
		return models.ErrorKindExtraction
	}
}
