package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	job "github.com/maheshrc27/postpilot/internal/jobs"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/repository"
)

type SchedulerHandler struct {
	scanner *job.DueScanJob
	ph      repository.PostingHistoryRepository
	client  *asynq.Client
}

func NewSchedulerHandler(scanner *job.DueScanJob, ph repository.PostingHistoryRepository, client *asynq.Client) *SchedulerHandler {
	return &SchedulerHandler{scanner: scanner, ph: ph, client: client}
}

// RunNow queues an immediate scan instead of running it inline, so the
// request returns fast and overlapping triggers collapse into the
// single-flight guard.
func (h *SchedulerHandler) RunNow(c *fiber.Ctx) error {
	if err := queue.EnqueueScan(h.client); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to trigger scan",
		})
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *SchedulerHandler) Status(c *fiber.Ctx) error {
	lastRun := h.scanner.LastRun()
	if lastRun == nil {
		return c.JSON(fiber.Map{"last_run": nil})
	}

	return c.JSON(fiber.Map{"last_run": lastRun})
}

func (h *SchedulerHandler) ListHistory(c *fiber.Ctx) error {
	userId := GetUserID(c)
	limit := c.QueryInt("limit", 50)

	history, err := h.ph.ListByUserID(c.Context(), userId, limit)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to list posting history",
		})
	}

	return c.Status(fiber.StatusOK).JSON(history)
}
