package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"strconv"

	"campuschat/internal/dto"
	"campuschat/internal/models"
	"campuschat/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChatHandler struct {
	chat   *service.ChatService
	logger *zap.Logger
}

func NewChatHandler(chat *service.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: logger,
	}
}

// Ask godoc
// @Summary Ask a question
// @Description Answer a question grounded in the knowledge base. A missing or stale session_id starts a new session.
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.AskRequest true "Question"
// @Success 200 {object} dto.ChatResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/chat/ask [post]
func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	var req dto.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.chat.Ask(c.Context(), req.SessionID, req.UserID, req.Language, req.Question)
	if err != nil {
		return h.chatError(c, err)
	}

	return c.JSON(dto.ChatResponse{
		SessionID:  result.SessionID.String(),
		ResponseID: result.ResponseID.String(),
		TurnNumber: result.TurnNumber,
		Answer:     result.Answer,
		Language:   result.Language,
		Sources:    result.Sources,
		Confidence: result.Confidence,
		Cached:     result.Cached,
	})
}

// Stream godoc
// @Summary Ask a question, streaming the answer
// @Description Streams the answer as NDJSON events: {session_id} (new sessions only), {chunk}*, {done}.
// @Tags chat
// @Accept json
// @Produce application/x-ndjson
// @Param request body dto.AskRequest true "Question"
// @Success 200 {string} string "NDJSON event stream"
// @Failure 400 {object} map[string]string
// @Router /api/v1/chat/stream [post]
func (h *ChatHandler) Stream(c *fiber.Ctx) error {
	var req dto.AskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	c.Set(fiber.HeaderContentType, "application/x-ndjson")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	ctx := c.Context()
	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		emit := func(event service.StreamEvent) error {
			line, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if _, err := w.Write(append(line, '\n')); err != nil {
				return err
			}
			return w.Flush()
		}

		if err := h.chat.Stream(ctx, req.SessionID, req.UserID, req.Language, req.Question, emit); err != nil {
			h.logger.Warn("Chat stream ended with error", zap.Error(err))
			_ = emit(service.StreamEvent{Error: err.Error()})
		}
	})

	return nil
}

// History godoc
// @Summary Get conversation history
// @Tags chat
// @Produce json
// @Param session_id query string true "Session ID"
// @Param limit query int false "Maximum turns to return"
// @Success 200 {object} dto.HistoryResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/chat/history [get]
func (h *ChatHandler) History(c *fiber.Ctx) error {
	sessionID := c.Query("session_id")
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	turns, err := h.chat.History(c.Context(), sessionID, limit)
	if err != nil {
		return h.chatError(c, err)
	}

	resp := dto.HistoryResponse{SessionID: sessionID, Turns: make([]dto.TurnResponse, 0, len(turns))}
	for _, turn := range turns {
		resp.Turns = append(resp.Turns, dto.TurnResponse{
			ID:          turn.ID.String(),
			TurnNumber:  turn.TurnNumber,
			UserMessage: turn.UserMessage,
			BotResponse: turn.BotResponse,
			Metadata:    turn.Metadata,
			CreatedAt:   turn.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return c.JSON(resp)
}

// Feedback godoc
// @Summary Rate an answer
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.FeedbackRequest true "Feedback"
// @Success 204
// @Failure 400 {object} map[string]string
// @Router /api/v1/chat/feedback [post]
func (h *ChatHandler) Feedback(c *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	responseID, err := uuid.Parse(req.ResponseID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid response ID",
		})
	}

	if err := h.chat.SubmitFeedback(c.Context(), responseID, models.Rating(req.Rating), req.Comment); err != nil {
		if errors.Is(err, service.ErrInvalidRating) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Rating must be positive or negative",
			})
		}
		h.logger.Error("Failed to save feedback", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save feedback",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Close godoc
// @Summary Close a session
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.CloseSessionRequest true "Session"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/chat/close [post]
func (h *ChatHandler) Close(c *fiber.Ctx) error {
	var req dto.CloseSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := h.chat.CloseSession(c.Context(), req.SessionID); err != nil {
		return h.chatError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) chatError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrEmptyQuestion):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Question is required"})
	case errors.Is(err, service.ErrQuestionTooLong):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Question is too long"})
	case errors.Is(err, service.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
	case errors.Is(err, service.ErrSessionClosed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Session is closed"})
	default:
		h.logger.Error("Chat request failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
