package dto

// CreateDocumentRequest registers a URL source. File sources arrive as
// multipart uploads instead.
type CreateDocumentRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	SourceURL   string `json:"source_url" validate:"required,url"`
}

type DocumentResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	SourceType  string `json:"source_type"`
	SourceURL   string `json:"source_url,omitempty"`
	Status      string `json:"status"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
	Lang        string `json:"lang,omitempty"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}
