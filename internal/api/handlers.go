package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/RixGem/progresspath/internal/cache"
	"github.com/RixGem/progresspath/internal/config"
	"github.com/RixGem/progresspath/internal/logger"
	"github.com/RixGem/progresspath/internal/models"
	"github.com/gofiber/fiber/v2"
)

// RefreshRunner is the pipeline behind the trigger endpoint.
type RefreshRunner interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

type Handlers struct {
	config    *config.Config
	pipeline  RefreshRunner
	summaries cache.RunSummaryCache
}

func NewHandlers(cfg *config.Config, pipeline RefreshRunner, summaries cache.RunSummaryCache) *Handlers {
	return &Handlers{
		config:    cfg,
		pipeline:  pipeline,
		summaries: summaries,
	}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// TriggerRefresh handles POST /api/v1/admin/refresh. The external
// scheduler calls this once a day and waits for the outcome, so the
// pipeline runs synchronously inside the request.
func (h *Handlers) TriggerRefresh(c *fiber.Ctx) error {
	log := logger.Get()
	log.Info().Str("ip", c.IP()).Msg("Refresh triggered")

	// The Fiber request context dies with the connection; the run gets
	// its own bounded context so a dropped scheduler connection does
	// not abort a half-finished replace.
	ctx, cancel := context.WithTimeout(context.Background(), h.config.HTTPTimeout)
	defer cancel()

	summary, err := h.pipeline.Run(ctx)
	if err != nil {
		if summary == nil {
			summary = &models.RunSummary{Timestamp: time.Now(), Error: err.Error()}
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":    false,
			"error":      summary.Error,
			"timestamp":  summary.Timestamp.Format(time.RFC3339),
			"durationMs": summary.DurationMs,
		})
	}

	message := fmt.Sprintf("Replaced daily dataset with %d quotes", summary.InsertedCount)
	if summary.Partial {
		message += " (short of target; some batches were abandoned)"
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"timestamp":     summary.Timestamp.Format(time.RFC3339),
		"durationMs":    summary.DurationMs,
		"deletedCount":  summary.DeletedCount,
		"insertedCount": summary.InsertedCount,
		"message":       message,
	})
}

// RefreshStatus handles GET /api/v1/admin/refresh/status
func (h *Handlers) RefreshStatus(c *fiber.Ctx) error {
	summary, err := h.summaries.LastRun(c.Context())
	if errors.Is(err, cache.ErrNoRun) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No refresh run recorded",
		})
	}
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading last run summary")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read refresh status",
		})
	}

	return c.JSON(summary)
}
