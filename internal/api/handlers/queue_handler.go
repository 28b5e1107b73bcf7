package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/queue"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/internal/transfer"
)

type QueueHandler struct {
	allocator service.AllocatorService
	sa        repository.SocialAccountRepository
	client    *asynq.Client
}

func NewQueueHandler(allocator service.AllocatorService, sa repository.SocialAccountRepository, client *asynq.Client) *QueueHandler {
	return &QueueHandler{allocator: allocator, sa: sa, client: client}
}

func (h *QueueHandler) Allocate(c *fiber.Ctx) error {
	userId := GetUserID(c)

	var req transfer.AllocateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	owned, err := h.sa.CheckByUserID(c.Context(), req.AccountID, userId)
	if err != nil || !owned {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Account doesn't belong to user",
		})
	}

	if err := queue.EnqueueAllocate(h.client, queue.AllocatePayload{AccountID: req.AccountID}); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to trigger allocation",
		})
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *QueueHandler) Reorder(c *fiber.Ctx) error {
	userId := GetUserID(c)

	var req transfer.ReorderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	owned, err := h.sa.CheckByUserID(c.Context(), req.AccountID, userId)
	if err != nil || !owned {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Account doesn't belong to user",
		})
	}

	if err := h.allocator.Reorder(c.Context(), req.AccountID, req.PostIDs); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusOK)
}
