package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/webpilot/backend/internal/usecase"
	"github.com/webpilot/backend/pkg/logger"
)

// task execution is bounded by the captcha wait budget plus browsing
// time, so the request timeout is generous
const executeTimeout = 10 * time.Minute

type Handler struct {
	tasks *usecase.Task
}

func NewHandler(tasks *usecase.Task) *Handler {
	return &Handler{tasks: tasks}
}

func (h *Handler) SetupRoutes(app *fiber.App) {
	app.Post("/api/v1/tasks/execute", h.handleExecute)
	app.Get("/api/v1/reports/search", h.handleSearchReports)
	app.Delete("/api/v1/reports/:id", h.handleDeleteReport)
	app.Delete("/api/v1/tasks/:id/reports", h.handleDeleteTaskReports)
	app.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

func (h *Handler) handleExecute(c *fiber.Ctx) error {
	log := logger.Log

	var req usecase.Request
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"error":   "invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"error":   "query is required",
		})
	}

	log.Info().Str("query", req.Query).Str("agent_id", req.AgentID).Msg("task request received")

	ctx, cancel := context.WithTimeout(c.Context(), executeTimeout)
	defer cancel()

	start := time.Now()
	outcome, err := h.tasks.Execute(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().Err(err).Str("query", req.Query).Msg("task execution failed")
		return c.Status(500).JSON(fiber.Map{
			"success":    false,
			"error":      err.Error(),
			"elapsed_ms": elapsed.Milliseconds(),
		})
	}

	log.Info().
		Str("query", req.Query).
		Bool("overall_success", outcome.OverallSuccess).
		Int("steps", len(outcome.Steps)).
		Int64("time_ms", elapsed.Milliseconds()).
		Msg("task completed")

	return c.JSON(fiber.Map{
		"success": outcome.OverallSuccess,
		"data":    outcome,
	})
}

func (h *Handler) handleSearchReports(c *fiber.Ctx) error {
	query := c.Query("q")
	agentID := c.Query("agent_id")
	if query == "" && agentID == "" {
		return c.Status(400).JSON(fiber.Map{
			"success": false,
			"error":   "q or agent_id is required",
		})
	}

	result, err := h.tasks.SearchReports(query, agentID, int64(c.QueryInt("limit")))
	if err != nil {
		logger.Log.Error().Err(err).Str("query", query).Msg("report search failed")
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

func (h *Handler) handleDeleteReport(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.tasks.DeleteReport(id); err != nil {
		logger.Log.Error().Err(err).Str("report_id", id).Msg("report delete failed")
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) handleDeleteTaskReports(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.tasks.DeleteTaskReports(id); err != nil {
		logger.Log.Error().Err(err).Str("task_id", id).Msg("task report delete failed")
		return c.Status(500).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"success": true})
}
