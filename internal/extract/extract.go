// Package extract turns document sources (PDF, Word, plain text, web pages)
// into plain text for chunking.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"campuschat/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/fumiama/go-docx"
	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"
)

var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrEmptyDocument     = errors.New("no extractable text")
)

type Extractor struct {
	httpClient *http.Client
	logger     *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	return &Extractor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Extract returns the plain text of a document's source. The caller has
// already validated that exactly one of FilePath and SourceURL is set.
func (e *Extractor) Extract(ctx context.Context, doc *models.Document) (string, error) {
	var (
		text string
		err  error
	)

	switch {
	case doc.SourceURL != "":
		text, err = e.fetchURL(ctx, doc.SourceURL)
	case doc.FilePath != "":
		text, err = e.extractFile(doc.FilePath, doc.SourceType)
	default:
		return "", ErrSourceNotFound
	}
	if err != nil {
		return "", err
	}

	text = strings.ToValidUTF8(text, "")
	if len(strings.TrimSpace(text)) < 10 {
		return "", ErrEmptyDocument
	}

	e.logger.Debug("Text extracted",
		zap.String("document_id", doc.ID.String()),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

func (e *Extractor) extractFile(path string, sourceType models.SourceType) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}

	switch sourceType {
	case models.SourceTypePDF:
		return e.extractPDF(path)
	case models.SourceTypeWord:
		return e.extractWord(path)
	case models.SourceTypeText:
		return e.extractText(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, sourceType)
	}
}

// extractPDF reads the document page by page.
func (e *Extractor) extractPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer doc.Close()

	var parts []string
	for i := 0; i < doc.NumPage(); i++ {
		page, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		if strings.TrimSpace(page) != "" {
			parts = append(parts, page)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractWord walks paragraphs and tables in document order.
func (e *Extractor) extractWord(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat docx: %w", err)
	}

	doc, err := docx.Parse(file, info.Size())
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}

	var parts []string
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docx.Paragraph:
			if s := strings.TrimSpace(block.String()); s != "" {
				parts = append(parts, s)
			}
		case *docx.Table:
			if s := strings.TrimSpace(block.String()); s != "" {
				parts = append(parts, s)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (e *Extractor) extractText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read text file: %w", err)
	}
	return string(data), nil
}

// fetchURL scrapes a web page and strips boilerplate elements, keeping only
// the readable body text.
func (e *Extractor) fetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("invalid source url: %w", err)
	}
	req.Header.Set("User-Agent", "campuschat-ingest/1.0")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSourceNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d for %s", ErrSourceNotFound, resp.StatusCode, url)
	}

	page, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to parse page: %w", err)
	}

	return StripBoilerplate(page), nil
}

// StripBoilerplate removes navigation, scripts and other chrome from a parsed
// page and returns the remaining body text.
func StripBoilerplate(page *goquery.Document) string {
	page.Find("script, style, nav, header, footer, aside, noscript, iframe, form").Remove()

	var parts []string
	page.Find("h1, h2, h3, h4, p, li, td, th").Each(func(_ int, sel *goquery.Selection) {
		if s := strings.TrimSpace(sel.Text()); s != "" {
			parts = append(parts, s)
		}
	})
	if len(parts) == 0 {
		return strings.TrimSpace(page.Find("body").Text())
	}
	return strings.Join(parts, "\n")
}
