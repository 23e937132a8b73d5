package handlers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"campuschat/internal/dto"
	"campuschat/internal/models"
	"campuschat/internal/service"
	"campuschat/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type DocumentHandler struct {
	ingest *service.IngestService
	upload *config.UploadConfig
	logger *zap.Logger
}

func NewDocumentHandler(ingest *service.IngestService, upload *config.UploadConfig, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		ingest: ingest,
		upload: upload,
		logger: logger,
	}
}

// Create godoc
// @Summary Register a knowledge source
// @Description Accepts a multipart file upload or a JSON body with a source URL. Ingestion runs in the background.
// @Tags documents
// @Accept multipart/form-data
// @Accept json
// @Produce json
// @Param file formData file false "Document file (pdf, docx, txt, md)"
// @Param title formData string false "Document title"
// @Success 201 {object} dto.DocumentResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/documents [post]
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	doc := &models.Document{}

	if file, err := c.FormFile("file"); err == nil {
		// A request naming both sources is ambiguous, not first-wins.
		if c.FormValue("source_url") != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Provide either a file or a source_url, not both",
			})
		}

		ext := strings.ToLower(filepath.Ext(file.Filename))
		sourceType, ok := sourceTypeForExt(ext)
		if !ok || !h.extAllowed(ext) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("Unsupported file type %s", ext),
			})
		}
		if file.Size > int64(h.upload.MaxSizeMB)*1024*1024 {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"error": "File is too large",
			})
		}

		if err := os.MkdirAll(h.upload.Dir, 0o755); err != nil {
			h.logger.Error("Failed to create upload dir", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store file",
			})
		}
		path := filepath.Join(h.upload.Dir, uuid.New().String()+ext)
		if err := c.SaveFile(file, path); err != nil {
			h.logger.Error("Failed to save upload", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to store file",
			})
		}

		doc.Title = c.FormValue("title")
		if doc.Title == "" {
			doc.Title = file.Filename
		}
		doc.Description = c.FormValue("description")
		doc.SourceType = sourceType
		doc.FilePath = path
	} else {
		var req dto.CreateDocumentRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
		if req.Title == "" || req.SourceURL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Title and source_url are required",
			})
		}
		doc.Title = req.Title
		doc.Description = req.Description
		doc.SourceType = models.SourceTypeURL
		doc.SourceURL = req.SourceURL
	}

	if err := h.ingest.CreateDocument(c.Context(), doc); err != nil {
		h.logger.Error("Failed to create document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create document",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(documentResponse(doc))
}

// List godoc
// @Summary List knowledge sources
// @Tags documents
// @Produce json
// @Param status query string false "Filter by status"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.DocumentResponse
// @Router /api/v1/documents [get]
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	status := models.DocumentStatus(c.Query("status"))

	docs, err := h.ingest.List(c.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}

	resp := make([]dto.DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, documentResponse(doc))
	}
	return c.JSON(resp)
}

// Get godoc
// @Summary Get one knowledge source
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} dto.DocumentResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/documents/{id} [get]
func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	doc, err := h.ingest.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		h.logger.Error("Failed to load document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}

	return c.JSON(documentResponse(doc))
}

// Process godoc
// @Summary Re-ingest a knowledge source
// @Description Queues the document for background re-processing.
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 202 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /api/v1/documents/{id}/process [post]
func (h *DocumentHandler) Process(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	if _, err := h.ingest.Get(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		h.logger.Error("Failed to load document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load document",
		})
	}

	if !h.ingest.Enqueue(id) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Ingestion queue is full, try again later",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "queued",
	})
}

// Delete godoc
// @Summary Delete a knowledge source
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document ID",
		})
	}

	if err := h.ingest.Delete(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Document not found",
			})
		}
		h.logger.Error("Failed to delete document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete document",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Stats godoc
// @Summary Knowledge base statistics
// @Tags documents
// @Produce json
// @Success 200 {object} models.DocumentStats
// @Router /api/v1/documents/stats [get]
func (h *DocumentHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.ingest.Stats(c.Context())
	if err != nil {
		h.logger.Error("Failed to load document stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load stats",
		})
	}
	return c.JSON(stats)
}

func (h *DocumentHandler) extAllowed(ext string) bool {
	for _, allowed := range h.upload.AllowedExts {
		if ext == allowed {
			return true
		}
	}
	return false
}

func sourceTypeForExt(ext string) (models.SourceType, bool) {
	switch ext {
	case ".pdf":
		return models.SourceTypePDF, true
	case ".docx", ".doc":
		return models.SourceTypeWord, true
	case ".txt", ".md":
		return models.SourceTypeText, true
	default:
		return "", false
	}
}

func documentResponse(doc *models.Document) dto.DocumentResponse {
	return dto.DocumentResponse{
		ID:          doc.ID.String(),
		Title:       doc.Title,
		Description: doc.Description,
		SourceType:  string(doc.SourceType),
		SourceURL:   doc.SourceURL,
		Status:      string(doc.Status),
		ErrorKind:   string(doc.ErrorKind),
		ErrorDetail: doc.ErrorDetail,
		Lang:        doc.Lang,
		ChunkCount:  doc.ChunkCount,
		CreatedAt:   doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   doc.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
