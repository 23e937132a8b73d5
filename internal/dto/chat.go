package dto

import "campuschat/internal/models"

type AskRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	Language  string `json:"language"`
	Question  string `json:"question" validate:"required"`
}

type ChatResponse struct {
	SessionID  string          `json:"session_id"`
	ResponseID string          `json:"response_id"`
	TurnNumber int             `json:"turn_number"`
	Answer     string          `json:"answer"`
	Language   string          `json:"language"`
	Sources    []models.Source `json:"sources,omitempty"`
	Confidence float64         `json:"confidence"`
	Cached     bool            `json:"cached"`
}

type TurnResponse struct {
	ID          string              `json:"id"`
	TurnNumber  int                 `json:"turn_number"`
	UserMessage string              `json:"user_message"`
	BotResponse string              `json:"bot_response"`
	Metadata    models.TurnMetadata `json:"metadata"`
	CreatedAt   string              `json:"created_at"`
}

type HistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []TurnResponse `json:"turns"`
}

type FeedbackRequest struct {
	ResponseID string `json:"response_id" validate:"required,uuid"`
	Rating     string `json:"rating" validate:"required,oneof=positive negative"`
	Comment    string `json:"comment"`
}

type CloseSessionRequest struct {
	SessionID string `json:"session_id" validate:"required,uuid"`
}
