package handler

import (
	"context"
	"time"

	"adaptive-quiz/internal/domain"
	"adaptive-quiz/internal/dto"
	"adaptive-quiz/internal/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Pinger is anything the health check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports process health and the reachability of optional
// backends.
type HealthHandler struct {
	coordinator interface{ TreeStructure() domain.IndexStatistics }
	checks      map[string]Pinger
	timeout     time.Duration
}

// NewHealthHandler creates a health handler; nil checks are ignored.
func NewHealthHandler(coordinator interface{ TreeStructure() domain.IndexStatistics }, checks map[string]Pinger) *HealthHandler {
	h := &HealthHandler{coordinator: coordinator, checks: make(map[string]Pinger), timeout: 2 * time.Second}
	for name, p := range checks {
		if p != nil {
			h.checks[name] = p
		}
	}
	return h
}

// Health handles GET /api/health. A failing backend degrades the status; the
// response is still 200.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status:    "ok",
		Questions: h.coordinator.TreeStructure().TotalQuestions,
	}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]string, len(h.checks))
	}
	for name, p := range h.checks {
		ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			logger.Get().Warn("Health check failed", zap.String("check", name), zap.Error(err))
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(resp)
}
