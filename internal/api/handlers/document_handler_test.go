package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"campuschat/pkg/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func documentTestApp(t *testing.T) *fiber.App {
	t.Helper()

	handler := NewDocumentHandler(nil, &config.UploadConfig{
		Dir:         t.TempDir(),
		MaxSizeMB:   1,
		AllowedExts: []string{".txt"},
	}, zap.NewNop())

	app := fiber.New()
	app.Post("/api/v1/documents", handler.Create)
	return app
}

func multipartUpload(t *testing.T, filename string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("contacts of the admission office"))
	require.NoError(t, err)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestCreateDocumentRejectsAmbiguousSource(t *testing.T) {
	app := documentTestApp(t)

	body, contentType := multipartUpload(t, "guide.txt", map[string]string{
		"source_url": "https://university.example/admissions",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestCreateDocumentRejectsUnsupportedExtension(t *testing.T) {
	app := documentTestApp(t)

	body, contentType := multipartUpload(t, "guide.exe", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
