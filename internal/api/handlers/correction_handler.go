package handlers

import (
	"errors"
	"strconv"

	"campuschat/internal/dto"
	"campuschat/internal/models"
	"campuschat/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CorrectionHandler struct {
	corrections *service.CorrectionService
	logger      *zap.Logger
}

func NewCorrectionHandler(corrections *service.CorrectionService, logger *zap.Logger) *CorrectionHandler {
	return &CorrectionHandler{
		corrections: corrections,
		logger:      logger,
	}
}

// Create godoc
// @Summary Create a manual correction
// @Tags corrections
// @Accept json
// @Produce json
// @Param request body dto.CorrectionRequest true "Correction"
// @Success 201 {object} dto.CorrectionResponse
// @Failure 400 {object} map[string]string
// @Router /api/v1/corrections [post]
func (h *CorrectionHandler) Create(c *fiber.Ctx) error {
	req, err := parseCorrection(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	correction := correctionFromRequest(req)
	if err := h.corrections.Create(c.Context(), correction); err != nil {
		h.logger.Error("Failed to create correction", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create correction",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(correctionResponse(correction))
}

// Update godoc
// @Summary Update a manual correction
// @Tags corrections
// @Accept json
// @Produce json
// @Param id path string true "Correction ID"
// @Param request body dto.CorrectionRequest true "Correction"
// @Success 200 {object} dto.CorrectionResponse
// @Failure 404 {object} map[string]string
// @Router /api/v1/corrections/{id} [put]
func (h *CorrectionHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid correction ID",
		})
	}

	req, err := parseCorrection(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	correction := correctionFromRequest(req)
	correction.ID = id
	if err := h.corrections.Update(c.Context(), correction); err != nil {
		if errors.Is(err, service.ErrCorrectionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Correction not found",
			})
		}
		h.logger.Error("Failed to update correction", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update correction",
		})
	}

	return c.JSON(correctionResponse(correction))
}

// Delete godoc
// @Summary Delete a manual correction
// @Tags corrections
// @Produce json
// @Param id path string true "Correction ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /api/v1/corrections/{id} [delete]
func (h *CorrectionHandler) Delete(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid correction ID",
		})
	}

	if err := h.corrections.Delete(c.Context(), id); err != nil {
		if errors.Is(err, service.ErrCorrectionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Correction not found",
			})
		}
		h.logger.Error("Failed to delete correction", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete correction",
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// List godoc
// @Summary List manual corrections
// @Tags corrections
// @Produce json
// @Param active query bool false "Only active corrections"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {array} dto.CorrectionResponse
// @Router /api/v1/corrections [get]
func (h *CorrectionHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	activeOnly := c.QueryBool("active")

	corrections, err := h.corrections.List(c.Context(), activeOnly, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list corrections", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list corrections",
		})
	}

	resp := make([]dto.CorrectionResponse, 0, len(corrections))
	for _, correction := range corrections {
		resp = append(resp, correctionResponse(correction))
	}
	return c.JSON(resp)
}

func parseCorrection(c *fiber.Ctx) (*dto.CorrectionRequest, error) {
	var req dto.CorrectionRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, errors.New("Invalid request body")
	}
	if req.Question == "" || req.Answer == "" {
		return nil, errors.New("Question and answer are required")
	}
	if req.Language != "uz" && req.Language != "ru" && req.Language != "en" {
		return nil, errors.New("Language must be uz, ru or en")
	}
	if req.MatchRule != "" && req.MatchRule != string(models.MatchExact) && req.MatchRule != string(models.MatchSemantic) {
		return nil, errors.New("Match rule must be exact or semantic")
	}
	return &req, nil
}

func correctionFromRequest(req *dto.CorrectionRequest) *models.ManualCorrection {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &models.ManualCorrection{
		Question:  req.Question,
		Answer:    req.Answer,
		Language:  req.Language,
		MatchRule: models.MatchRule(req.MatchRule),
		Threshold: req.Threshold,
		IsActive:  active,
	}
}

func correctionResponse(correction *models.ManualCorrection) dto.CorrectionResponse {
	return dto.CorrectionResponse{
		ID:        correction.ID.String(),
		Question:  correction.Question,
		Answer:    correction.Answer,
		Language:  correction.Language,
		MatchRule: string(correction.MatchRule),
		Threshold: correction.Threshold,
		IsActive:  correction.IsActive,
		CreatedAt: correction.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: correction.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
