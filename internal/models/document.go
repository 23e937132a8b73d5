package models

import (
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceTypePDF  SourceType = "pdf"
	SourceTypeWord SourceType = "word"
	SourceTypeText SourceType = "text"
	SourceTypeURL  SourceType = "url"
)

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// ErrorKind classifies why ingestion of a document failed.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindSourceLost  ErrorKind = "source_not_found"
	ErrorKindUnsupported ErrorKind = "unsupported_format"
	ErrorKindExtraction  ErrorKind = "extraction_error"
	ErrorKindEmbedding   ErrorKind = "embedding_error"
	ErrorKindStorage     ErrorKind = "storage_error"
)

// Document is an uploaded knowledge source. Exactly one of FilePath and
// SourceURL is set; the ingestion pipeline owns all status transitions.
type Document struct {
	ID          uuid.UUID      `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	SourceType  SourceType     `db:"source_type"`
	FilePath    string         `db:"file_path"`
	SourceURL   string         `db:"source_url"`
	Status      DocumentStatus `db:"status"`
	ErrorKind   ErrorKind      `db:"error_kind"`
	ErrorDetail string         `db:"error_detail"`
	Lang        string         `db:"lang"`
	ChunkCount  int            `db:"chunk_count"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// DocumentStats aggregates the knowledge base for the admin stats endpoint.
type DocumentStats struct {
	Total       int `json:"total"`
	Pending     int `json:"pending"`
	Processing  int `json:"processing"`
	Completed   int `json:"completed"`
	Failed      int `json:"failed"`
	TotalChunks int `json:"total_chunks"`
}

// DocumentChunk is one quality-filtered slice of a document's text. The
// embedding vector itself lives in the vector index under EmbeddingID.
type DocumentChunk struct {
	ID          uuid.UUID `db:"id"`
	DocumentID  uuid.UUID `db:"document_id"`
	ChunkIndex  int       `db:"chunk_index"`
	Content     string    `db:"content"`
	Lang        string    `db:"lang"`
	EmbeddingID string    `db:"embedding_id"`
	CreatedAt   time.Time `db:"created_at"`
}
