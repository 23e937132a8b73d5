package repository

import (
	"context"

	"campuschat/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type DocumentRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewDocumentRepository(db *pgxpool.Pool, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := squirrel.Insert("documents").
		Columns("id", "title", "description", "source_type", "file_path", "source_url", "status", "error_kind", "error_detail", "lang", "chunk_count", "created_at", "updated_at").
		Values(doc.ID, doc.Title, doc.Description, doc.SourceType, doc.FilePath, doc.SourceURL, doc.Status, doc.ErrorKind, doc.ErrorDetail, doc.Lang, doc.ChunkCount, doc.CreatedAt, doc.UpdatedAt).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	query := squirrel.Select(documentColumns...).
		From("documents").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var doc models.Document
	err = r.db.QueryRow(ctx, sql, args...).Scan(documentFields(&doc)...)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, status models.DocumentStatus, limit, offset int) ([]*models.Document, error) {
	builder := squirrel.Select(documentColumns...).
		From("documents").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar)

	if status != "" {
		builder = builder.Where(squirrel.Eq{"status": status})
	}

	sql, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var documents []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(documentFields(&doc)...); err != nil {
			return nil, err
		}
		documents = append(documents, &doc)
	}

	return documents, rows.Err()
}

// MarkProcessing claims a document for ingestion. Returns false if the
// document is missing or another worker already holds it.
func (r *DocumentRepository) MarkProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	query := squirrel.Update("documents").
		Set("status", models.StatusProcessing).
		Set("error_kind", "").
		Set("error_detail", "").
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.NotEq{"status": models.StatusProcessing}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id uuid.UUID, kind models.ErrorKind, detail string) error {
	query := squirrel.Update("documents").
		Set("status", models.StatusFailed).
		Set("error_kind", kind).
		Set("error_detail", detail).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

// ReplaceChunks atomically swaps a document's chunk set for a new one and
// marks the document completed. Re-ingestion never leaves a mixed state.
func (r *DocumentRepository) ReplaceChunks(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	delQuery := squirrel.Delete("document_chunks").
		Where(squirrel.Eq{"document_id": doc.ID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := delQuery.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return err
	}

	if len(chunks) > 0 {
		builder := squirrel.Insert("document_chunks").
			Columns("id", "document_id", "chunk_index", "content", "lang", "embedding_id", "created_at").
			PlaceholderFormat(squirrel.Dollar)
		for _, chunk := range chunks {
			builder = builder.Values(chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.Lang, chunk.EmbeddingID, chunk.CreatedAt)
		}

		sql, args, err = builder.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	updQuery := squirrel.Update("documents").
		Set("status", models.StatusCompleted).
		Set("error_kind", "").
		Set("error_detail", "").
		Set("lang", doc.Lang).
		Set("chunk_count", len(chunks)).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": doc.ID}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err = updQuery.ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *DocumentRepository) ListChunks(ctx context.Context, documentID uuid.UUID) ([]*models.DocumentChunk, error) {
	query := squirrel.Select("id", "document_id", "chunk_index", "content", "lang", "embedding_id", "created_at").
		From("document_chunks").
		Where(squirrel.Eq{"document_id": documentID}).
		OrderBy("chunk_index ASC").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []*models.DocumentChunk
	for rows.Next() {
		var chunk models.DocumentChunk
		if err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.ChunkIndex, &chunk.Content, &chunk.Lang, &chunk.EmbeddingID, &chunk.CreatedAt,
		); err != nil {
			return nil, err
		}
		chunks = append(chunks, &chunk)
	}

	return chunks, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := squirrel.Delete("documents").
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, sql, args...)
	return err
}

func (r *DocumentRepository) Stats(ctx context.Context) (*models.DocumentStats, error) {
	query := squirrel.Select("status", "COUNT(*)", "COALESCE(SUM(chunk_count), 0)").
		From("documents").
		GroupBy("status").
		PlaceholderFormat(squirrel.Dollar)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats models.DocumentStats
	for rows.Next() {
		var status models.DocumentStatus
		var count, chunks int
		if err := rows.Scan(&status, &count, &chunks); err != nil {
			return nil, err
		}

		stats.Total += count
		stats.TotalChunks += chunks
		switch status {
		case models.StatusPending:
			stats.Pending = count
		case models.StatusProcessing:
			stats.Processing = count
		case models.StatusCompleted:
			stats.Completed = count
		case models.StatusFailed:
			stats.Failed = count
		}
	}

	return &stats, rows.Err()
}

var documentColumns = []string{
	"id", "title", "description", "source_type", "file_path", "source_url",
	"status", "error_kind", "error_detail", "lang", "chunk_count", "created_at", "updated_at",
}

func documentFields(doc *models.Document) []any {
	return []any{
		&doc.ID, &doc.Title, &doc.Description, &doc.SourceType, &doc.FilePath, &doc.SourceURL,
		&doc.Status, &doc.ErrorKind, &doc.ErrorDetail, &doc.Lang, &doc.ChunkCount, &doc.CreatedAt, &doc.UpdatedAt,
	}
}
