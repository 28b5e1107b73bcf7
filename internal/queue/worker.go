package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/postpilot/internal/service"
)

func (j *Queue) HandleScanDueTask(ctx context.Context, task *asynq.Task) error {
	j.scanner.Run()
	return nil
}

func (j *Queue) HandleAllocateTask(ctx context.Context, task *asynq.Task) error {
	var payload AllocatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	allocated, err := j.allocator.AllocateAll(ctx, payload.AccountID)
	if err != nil {
		// A misconfigured policy will never find a slot; retrying the task
		// would spin. Surface it and stop.
		if errors.Is(err, service.ErrNoSlot) {
			log.Printf("Allocation for account %d exhausted the lookahead horizon after %d slots", payload.AccountID, allocated)
			return nil
		}
		return err
	}

	log.Printf("Allocated %d slots for account %d", allocated, payload.AccountID)
	return nil
}
