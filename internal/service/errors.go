package service

import "errors"

var (
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrQuestionTooLong    = errors.New("question exceeds maximum length")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session is closed")
	ErrDocumentNotFound   = errors.New("document not found")
	ErrDocumentBusy       = errors.New("document is already being processed")
	ErrModelUnavailable   = errors.New("generation model is unavailable")
	ErrCorrectionNotFound = errors.New("correction not found")
	ErrInvalidRating      = errors.New("rating must be positive or negative")
)

// MaxQuestionLen bounds a single user question in runes.
const MaxQuestionLen = 2000
