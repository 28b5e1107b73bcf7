package job

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/service"
)

// AllocationJob is the periodic allocation pass: it drains every account's
// queue into concrete slots, so recurrence clones and other queued posts get
// scheduled without anyone calling the manual trigger.
type AllocationJob struct {
	pr        repository.PostRepository
	allocator service.AllocatorService
}

func NewAllocationJob(pr repository.PostRepository, allocator service.AllocatorService) *AllocationJob {
	return &AllocationJob{
		pr:        pr,
		allocator: allocator,
	}
}

func (j *AllocationJob) Run() {
	ctx := context.Background()

	accountIDs, err := j.pr.ListQueuedAccountIDs(ctx)
	if err != nil {
		slog.Info("allocation pass failed", "error", err.Error())
		return
	}

	for _, accountID := range accountIDs {
		allocated, err := j.allocator.AllocateAll(ctx, accountID)
		if err != nil {
			// One account's misconfigured policy must not starve the rest.
			if errors.Is(err, service.ErrNoSlot) {
				slog.Info("queue exhausted the lookahead horizon", "account_id", accountID, "allocated", allocated)
				continue
			}
			slog.Info("allocation failed", "account_id", accountID, "error", err.Error())
			continue
		}
		if allocated > 0 {
			slog.Info("slots allocated", "account_id", accountID, "allocated", allocated)
		}
	}
}
