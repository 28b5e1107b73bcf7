package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type SettingsHandler struct {
	s      service.SettingsService
	client *asynq.Client
}

func NewSettingsHandler(service service.SettingsService, client *asynq.Client) *SettingsHandler {
	return &SettingsHandler{s: service, client: client}
}

func (h *SettingsHandler) GetPolicy(c *fiber.Ctx) error {
	userId := GetUserID(c)
	accountId := c.QueryInt("account_id", 0)

	acc, err := h.s.GetPolicy(c.Context(), userId, int64(accountId))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to find posting policy for given account",
		})
	}

	return c.JSON(fiber.Map{
		"account_id":           acc.ID,
		"posting_times":        acc.PostingTimes,
		"timezone":             acc.Timezone,
		"min_interval_minutes": acc.MinIntervalMins,
		"max_posts_per_day":    acc.MaxPostsPerDay,
		"skip_weekends":        acc.SkipWeekends,
	})
}

// UpdatePolicy persists the new posting policy and triggers an allocation
// pass so queued posts get slots under the updated rules without waiting for
// the periodic pass.
func (h *SettingsHandler) UpdatePolicy(c *fiber.Ctx) error {
	userId := GetUserID(c)

	var update transfer.PolicyUpdate
	err := c.BodyParser(&update)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	err = h.s.UpdatePolicy(c.Context(), userId, &update)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to update posting policy",
		})
	}

	if err := queue.EnqueueAllocate(h.client, queue.AllocatePayload{AccountID: update.AccountID}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Policy saved but allocation trigger failed",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
