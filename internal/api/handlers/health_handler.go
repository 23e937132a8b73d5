package handlers

import (
	"context"
	"time"

	"campuschat/internal/index"
	"campuschat/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type HealthHandler struct {
	db     *pgxpool.Pool
	index  index.Adapter
	llm    *service.LLMService
	logger *zap.Logger
}

func NewHealthHandler(db *pgxpool.Pool, idx index.Adapter, llm *service.LLMService, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		index:  idx,
		llm:    llm,
		logger: logger,
	}
}

type componentHealth struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Health godoc
// @Summary Service health
// @Description Probes the database, the vector index and the model backend.
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	components := fiber.Map{
		"database": h.probe(ctx, h.db.Ping),
		"index":    h.probe(ctx, h.index.Ping),
		"model":    h.probe(ctx, h.llm.Ping),
	}

	status := "ok"
	code := fiber.StatusOK
	for _, component := range components {
		if component.(componentHealth).Status != "ok" {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":     status,
		"components": components,
	})
}

func (h *HealthHandler) probe(ctx context.Context, ping func(context.Context) error) componentHealth {
	started := time.Now()
	err := ping(ctx)
	health := componentHealth{
		Status:    "ok",
		LatencyMs: time.Since(started).Milliseconds(),
	}
	if err != nil {
		health.Status = "down"
		health.Error = err.Error()
		h.logger.Warn("Health probe failed", zap.Error(err))
	}
	return health
}
